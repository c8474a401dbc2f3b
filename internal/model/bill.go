package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillPaid    BillStatus = "Paid"
	BillUnpaid  BillStatus = "Unpaid"
	BillOverdue BillStatus = "Overdue"
)

// Bill is issued by the external billing job; read-only here.
type Bill struct {
	ID        string          `db:"bill_id"    json:"BillID"`
	AccountID string          `db:"account_id" json:"AccountID"`
	IssueDate time.Time       `db:"issue_date" json:"IssueDate"`
	DueDate   *time.Time      `db:"due_date"   json:"DueDate,omitempty"`
	Amount    decimal.Decimal `db:"amount"     json:"Amount"`
	Status    BillStatus      `db:"status"     json:"Status"`
}
