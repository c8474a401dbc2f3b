package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

// InsertOutbox adds an event row in the caller's transaction. The relay
// worker publishes it to Kafka based on the `topic` column.
func (t *mysqlTx) InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`, aggregate, aggregateID, topic, payload)
	if err != nil {
		return fmt.Errorf("insert outbox %s/%s: %w", aggregate, aggregateID, err)
	}
	return nil
}

// OutboxRepository is the relay side of the outbox table.
type OutboxRepository interface {
	// FetchPending locks up to limit unpublished events, skipping rows held by
	// another relay.
	FetchPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, tx *sqlx.Tx, ids []int64) error
	IncrementAttempts(ctx context.Context, tx *sqlx.Tx, ids []int64) error
}

type outboxRepo struct{}

func NewOutboxRepository() OutboxRepository { return &outboxRepo{} }

func (r *outboxRepo) FetchPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows := []model.OutboxEvent{}
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, aggregate, aggregate_id, topic, payload, attempts, published_at, created_at
		  FROM outbox
		 WHERE published_at IS NULL
		 ORDER BY id
		 LIMIT ?
		   FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	return rows, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	return r.updateIn(ctx, tx, `UPDATE outbox SET published_at = NOW() WHERE id IN (?)`, ids)
}

func (r *outboxRepo) IncrementAttempts(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	return r.updateIn(ctx, tx, `UPDATE outbox SET attempts = attempts + 1 WHERE id IN (?)`, ids)
}

func (r *outboxRepo) updateIn(ctx context.Context, tx *sqlx.Tx, base string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(base, ids)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}
