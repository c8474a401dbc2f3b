package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const billColumns = `b.bill_id, b.account_id, b.issue_date, b.due_date, b.amount, b.status`

func (r queries) ListBills(ctx context.Context, accountID string) ([]model.Bill, error) {
	q := `SELECT ` + billColumns + ` FROM bills b`
	var args []any
	if accountID != "" {
		q += ` WHERE b.account_id = ?`
		args = append(args, accountID)
	}
	q += ` ORDER BY b.issue_date DESC, b.bill_id DESC`

	rows := []model.Bill{}
	if err := sqlx.SelectContext(ctx, r.q, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return rows, nil
}

func (r queries) ListBillsByCustomer(ctx context.Context, customerID string) ([]model.Bill, error) {
	rows := []model.Bill{}
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+billColumns+`
		  FROM bills b
		  JOIN accounts a ON a.account_id = b.account_id
		 WHERE a.customer_id = ?
		 ORDER BY b.issue_date DESC, b.bill_id DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list bills of %s: %w", customerID, err)
	}
	return rows, nil
}
