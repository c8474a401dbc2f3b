package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const accountColumns = `account_id, customer_id, service_start_date, billing_cycle, balance, created_at`

// ListAccountsByCustomer returns accounts ordered by id; the first one is the
// customer's primary account.
func (r queries) ListAccountsByCustomer(ctx context.Context, customerID string) ([]model.Account, error) {
	rows := []model.Account{}
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+accountColumns+`
		  FROM accounts
		 WHERE customer_id = ?
		 ORDER BY account_id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts of %s: %w", customerID, err)
	}
	return rows, nil
}

func (r queries) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := sqlx.GetContext(ctx, r.q, &a, `
		SELECT `+accountColumns+`
		  FROM accounts
		 WHERE account_id = ? LIMIT 1
	`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

func (t *mysqlTx) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts
		    (account_id, customer_id, service_start_date, billing_cycle, balance, created_at)
		VALUES
		    (?, ?, ?, ?, ?, NOW())
	`, a.ID, a.CustomerID, a.ServiceStartDate, a.BillingCycle, a.Balance)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.ID, err)
	}
	return nil
}
