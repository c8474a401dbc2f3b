package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const BillingCycleMonthly = "Monthly"

// Account is the billable service account of a customer.
type Account struct {
	ID               string          `db:"account_id"         json:"AccountID"`
	CustomerID       string          `db:"customer_id"        json:"CustomerID"`
	ServiceStartDate time.Time       `db:"service_start_date" json:"ServiceStartDate"`
	BillingCycle     string          `db:"billing_cycle"      json:"BillingCycle"`
	Balance          decimal.Decimal `db:"balance"            json:"Balance"`
	CreatedAt        time.Time       `db:"created_at"         json:"CreatedAt"`
}
