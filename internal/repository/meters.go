package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const meterColumns = `m.meter_id, m.account_id, m.utility_type, m.status, m.installed_at, m.removed_at, m.request_id`

// ListMetersByCustomer joins through the customer's accounts.
func (r queries) ListMetersByCustomer(ctx context.Context, customerID string) ([]model.Meter, error) {
	rows := []model.Meter{}
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+meterColumns+`
		  FROM meters m
		  JOIN accounts a ON a.account_id = m.account_id
		 WHERE a.customer_id = ?
		 ORDER BY m.meter_id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list meters of %s: %w", customerID, err)
	}
	return rows, nil
}

func (t *mysqlTx) InsertMeter(ctx context.Context, m model.Meter) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO meters
		    (meter_id, account_id, utility_type, status, installed_at, request_id)
		VALUES
		    (?, ?, ?, ?, ?, ?)
	`, m.ID, m.AccountID, m.UtilityType.String(), m.Status, m.InstalledAt, m.RequestID)
	if err != nil {
		return fmt.Errorf("insert meter %s: %w", m.ID, err)
	}
	return nil
}

func (t *mysqlTx) ListActiveMetersForUpdate(ctx context.Context, customerID string, utility model.UtilityType) ([]model.Meter, error) {
	rows := []model.Meter{}
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+meterColumns+`
		  FROM meters m
		  JOIN accounts a ON a.account_id = m.account_id
		 WHERE a.customer_id = ? AND m.utility_type = ? AND m.status = 'Active'
		 ORDER BY m.meter_id
		   FOR UPDATE
	`, customerID, utility.String())
	if err != nil {
		return nil, fmt.Errorf("lock meters of %s: %w", customerID, err)
	}
	return rows, nil
}

// DeactivateMeters updates many meters using a single statement.
func (t *mysqlTx) DeactivateMeters(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const base = `UPDATE meters SET status = 'Inactive', removed_at = ? WHERE meter_id IN (?)`
	query, args, err := sqlx.In(base, at, ids)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("deactivate meters: %w", err)
	}
	return nil
}
