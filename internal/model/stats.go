package model

import "github.com/shopspring/decimal"

// Stats is the administrative dashboard summary.
type Stats struct {
	Customers       int64           `db:"customers"        json:"customers"`
	Accounts        int64           `db:"accounts"         json:"accounts"`
	ActiveMeters    int64           `db:"active_meters"    json:"active_meters"`
	PendingRequests int64           `db:"pending_requests" json:"pending_requests"`
	UnpaidBills     int64           `db:"unpaid_bills"     json:"unpaid_bills"`
	UnpaidAmount    decimal.Decimal `db:"unpaid_amount"    json:"unpaid_amount"`
}
