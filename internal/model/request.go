package model

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

func (s RequestStatus) String() string { return string(s) }

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// Terminal reports whether no transition is legal out of s.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// ParseRequestStatus is case-insensitive.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return RequestPending, true
	case "approved":
		return RequestApproved, true
	case "rejected":
		return RequestRejected, true
	default:
		return "", false
	}
}

type RequestAction string

const (
	ActionConnect    RequestAction = "connect"
	ActionDisconnect RequestAction = "disconnect"
	ActionModify     RequestAction = "modify"
)

func (a RequestAction) String() string { return string(a) }

// ParseRequestAction normalizes input; empty => connect.
func ParseRequestAction(s string) (RequestAction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "connect":
		return ActionConnect, true
	case "disconnect":
		return ActionDisconnect, true
	case "modify":
		return ActionModify, true
	default:
		return "", false
	}
}

// Request is a customer's service-change request.
type Request struct {
	ID          string        `db:"request_id"   json:"RequestID"`
	CustomerID  string        `db:"customer_id"  json:"CustomerID"`
	UtilityType UtilityType   `db:"utility_type" json:"UtilityType"`
	Action      RequestAction `db:"action"       json:"Action"`
	Status      RequestStatus `db:"status"       json:"Status"`
	RequestDate time.Time     `db:"request_date" json:"RequestDate"`
	DecidedAt   *time.Time    `db:"decided_at"   json:"DecidedAt,omitempty"`
}

// RequestScope filters List. Zero value lists everything.
type RequestScope struct {
	CustomerID string
	Status     RequestStatus
}

// Decision is the outcome of a successful Decide.
type Decision struct {
	Request           Request `json:"request"`
	Meter             *Meter  `json:"meter,omitempty"`
	DeactivatedMeters []Meter `json:"deactivated_meters,omitempty"`
}
