package model

import "time"

type MeterStatus string

const (
	MeterActive   MeterStatus = "Active"
	MeterInactive MeterStatus = "Inactive"
)

type Meter struct {
	ID          string      `db:"meter_id"     json:"MeterID"`
	AccountID   string      `db:"account_id"   json:"AccountID"`
	UtilityType UtilityType `db:"utility_type" json:"UtilityType"`
	Status      MeterStatus `db:"status"       json:"Status"`
	InstalledAt time.Time   `db:"installed_at" json:"InstalledAt"`
	RemovedAt   *time.Time  `db:"removed_at"   json:"RemovedAt,omitempty"` // nullable
	RequestID   *string     `db:"request_id"   json:"RequestID,omitempty"` // provisioning request, nullable
}
