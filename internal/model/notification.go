package model

import "time"

type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// Notification records one delivery attempt of a lifecycle event to a customer.
type Notification struct {
	EventID    string             `db:"event_id"`
	CustomerID string             `db:"customer_id"`
	RequestID  string             `db:"request_id"`
	Channel    string             `db:"channel"`
	Status     NotificationStatus `db:"status"`
	CreatedAt  time.Time          `db:"created_at"`
}

// Message is what notification providers deliver.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}
