package repository

import (
	"context"
	"strings"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

type NotificationsRepository interface {
	InsertBatch(ctx context.Context, tx *sqlx.Tx, rows []model.Notification) error
}

type notificationsRepo struct{}

func NewNotificationsRepository() NotificationsRepository { return &notificationsRepo{} }

// InsertBatch is idempotent on event_id so redelivered Kafka messages do not
// duplicate rows.
func (r *notificationsRepo) InsertBatch(ctx context.Context, tx *sqlx.Tx, rows []model.Notification) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*5)

	sb.WriteString(`INSERT INTO notifications (event_id, customer_id, request_id, channel, status, created_at) VALUES `)
	for i, n := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, NOW())")
		args = append(args, n.EventID, n.CustomerID, n.RequestID, n.Channel, string(n.Status))
	}
	sb.WriteString(` ON DUPLICATE KEY UPDATE status = VALUES(status)`)

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}
