package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const requestColumns = `request_id, customer_id, utility_type, action, status, request_date, decided_at`

// ListRequests returns model.ErrEntityUninitialized when the requests table
// has not been migrated yet.
func (r queries) ListRequests(ctx context.Context, scope model.RequestScope) ([]model.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM requests WHERE 1 = 1`
	var args []any
	if scope.CustomerID != "" {
		q += " AND customer_id = ?"
		args = append(args, scope.CustomerID)
	}
	if scope.Status != "" {
		q += " AND status = ?"
		args = append(args, scope.Status.String())
	}
	q += " ORDER BY request_date DESC, request_id DESC"

	rows := []model.Request{}
	if err := sqlx.SelectContext(ctx, r.q, &rows, q, args...); err != nil {
		if mysqlErrNumber(err) == mysqlErrNoSuchTable {
			return nil, fmt.Errorf("list requests: %w", model.ErrEntityUninitialized)
		}
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return rows, nil
}

func (r queries) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	err := sqlx.GetContext(ctx, r.q, &req, `
		SELECT `+requestColumns+`
		  FROM requests
		 WHERE request_id = ? LIMIT 1
	`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return &req, nil
}

// GetRequestForUpdate locks the request row until the transaction ends.
func (t *mysqlTx) GetRequestForUpdate(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	err := t.tx.GetContext(ctx, &req, `
		SELECT `+requestColumns+`
		  FROM requests
		 WHERE request_id = ?
		   FOR UPDATE
	`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock request %s: %w", id, err)
	}
	return &req, nil
}

func (t *mysqlTx) InsertRequest(ctx context.Context, r model.Request) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO requests
		    (request_id, customer_id, utility_type, action, status, request_date)
		VALUES
		    (?, ?, ?, ?, ?, ?)
	`, r.ID, r.CustomerID, r.UtilityType.String(), r.Action.String(), r.Status.String(), r.RequestDate)
	if mysqlErrNumber(err) == mysqlErrDupEntry {
		return fmt.Errorf("insert request %s: %w", r.ID, model.ErrRequestExists)
	}
	if err != nil {
		return fmt.Errorf("insert request %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRequestStatus only moves Pending rows; anything else is an invalid transition.
func (t *mysqlTx) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus, decidedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE requests
		   SET status = ?, decided_at = ?
		 WHERE request_id = ? AND status = 'Pending'
	`, status.String(), decidedAt, id)
	if err != nil {
		return fmt.Errorf("update request %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("update request %s: %w", id, model.ErrInvalidTransition)
	}
	return nil
}
