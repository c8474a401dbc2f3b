package model

import "time"

type EventType string

const (
	EventRequestSubmitted            EventType = "request.submitted"
	EventRequestDecided              EventType = "request.decided"
	EventRequestProvisioningDeferred EventType = "request.provisioning_deferred"
)

// Envelope is the lifecycle event written to the outbox and relayed to Kafka.
type Envelope struct {
	ID         string    `json:"id"` // event ULID
	Type       EventType `json:"type"`
	Request    Request   `json:"request"`
	MeterID    string    `json:"meter_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
