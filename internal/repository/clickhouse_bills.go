package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type chBillsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

// NewCHBillsRepository reads bills from the ClickHouse billing replica (final view).
func NewCHBillsRepository(ch *sqlx.DB) BillReader {
	return &chBillsRepository{ch: ch}
}

func (r *chBillsRepository) ListBills(ctx context.Context, accountID string) ([]model.Bill, error) {
	q := `
		SELECT bill_id, account_id, issue_date, due_date, toString(amount) AS amount, status
		FROM ubms.bills_latest
	`
	var args []any
	if accountID != "" {
		q += " WHERE account_id = ?"
		args = append(args, accountID)
	}
	q += " ORDER BY issue_date DESC, bill_id DESC"

	rows := []model.Bill{}
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("clickhouse list bills: %w", err)
	}
	return rows, nil
}

// ListBillsByCustomer relies on customer_id being denormalised into the replica.
func (r *chBillsRepository) ListBillsByCustomer(ctx context.Context, customerID string) ([]model.Bill, error) {
	rows := []model.Bill{}
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT bill_id, account_id, issue_date, due_date, toString(amount) AS amount, status
		FROM ubms.bills_latest
		WHERE customer_id = ?
		ORDER BY issue_date DESC, bill_id DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("clickhouse list bills of %s: %w", customerID, err)
	}
	return rows, nil
}
