package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/kafka"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

// Publisher writes messages to the broker. The error slice, when non-nil,
// holds one entry per message.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) ([]error, error)
}

// OutboxRelay moves committed outbox rows to Kafka:
// - claims a batch of unpublished rows (skipping rows another relay holds),
// - publishes them keyed by aggregate id,
// - marks delivered rows published and bumps attempts on the rest, in the claiming tx.
type OutboxRelay struct {
	DB           *sqlx.DB
	Outbox       repository.OutboxRepository
	Publisher    Publisher
	BatchSize    int
	PollInterval time.Duration
	Log          *zap.Logger
}

func NewOutboxRelay(db *sqlx.DB, outbox repository.OutboxRepository, pub Publisher, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		DB:           db,
		Outbox:       outbox,
		Publisher:    pub,
		BatchSize:    100,
		PollInterval: 500 * time.Millisecond,
		Log:          log,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 500 * time.Millisecond
	}
	if r.Log == nil {
		r.Log = zap.NewNop()
	}

	tick := time.NewTicker(r.PollInterval)
	defer tick.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.Log.Error("outbox relay failed", zap.Error(err))
		}
		if err == nil && n >= r.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// RelayOnce handles a single batch and returns how many rows it claimed.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	events, err := r.Outbox.FetchPending(ctx, tx, r.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{
			Topic: ev.Topic,
			Key:   []byte(ev.AggregateID),
			Value: ev.Payload,
		}
	}

	perMsg, perr := r.Publisher.Publish(ctx, msgs...)

	published := make([]int64, 0, len(events))
	failed := make([]int64, 0)
	for i, ev := range events {
		switch {
		case perr == nil:
			published = append(published, ev.ID)
		case perMsg != nil && i < len(perMsg) && perMsg[i] == nil:
			published = append(published, ev.ID)
		default:
			failed = append(failed, ev.ID)
		}
	}

	if err := r.Outbox.MarkPublished(ctx, tx, published); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if err := r.Outbox.IncrementAttempts(ctx, tx, failed); err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	metrics.OutboxRelayed.WithLabelValues("ok").Add(float64(len(published)))
	metrics.OutboxRelayed.WithLabelValues("error").Add(float64(len(failed)))

	if perr != nil {
		r.Log.Warn("outbox publish incomplete",
			zap.Int("published", len(published)),
			zap.Int("failed", len(failed)),
			zap.Error(perr),
		)
		if len(published) == 0 {
			return len(events), errors.Join(errors.New("publish failed"), perr)
		}
	}
	return len(events), nil
}
