package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/idgen"
)

// idSources maps each entity to the table/column holding its identifiers.
var idSources = map[idgen.Entity]struct{ table, column string }{
	idgen.EntityCustomer: {"customers", "customer_id"},
	idgen.EntityAccount:  {"accounts", "account_id"},
	idgen.EntityRequest:  {"requests", "request_id"},
	idgen.EntityMeter:    {"meters", "meter_id"},
}

// lockSequence returns the locked counter of entity. A zero counter on a
// populated table is seeded from the highest stored identifier carrying the
// entity prefix.
func (t *mysqlTx) lockSequence(ctx context.Context, entity idgen.Entity) (int64, error) {
	src, ok := idSources[entity]
	if !ok {
		return 0, fmt.Errorf("unknown sequence entity %q", entity)
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO id_sequences (entity, last_value) VALUES (?, 0)
		ON DUPLICATE KEY UPDATE entity = entity
	`, entity.String()); err != nil {
		return 0, fmt.Errorf("ensure sequence %s: %w", entity, err)
	}

	var last int64
	if err := t.tx.QueryRowxContext(ctx, `
		SELECT last_value FROM id_sequences WHERE entity = ? FOR UPDATE
	`, entity.String()).Scan(&last); err != nil {
		return 0, fmt.Errorf("lock sequence %s: %w", entity, err)
	}
	if last > 0 {
		return last, nil
	}

	// Free-form ids (caller-supplied request ids) never seed the counter.
	// Prefixed ids that do not match the format sort first so they surface
	// as malformed instead of being skipped.
	var lastID string
	err := t.tx.QueryRowxContext(ctx, fmt.Sprintf(`
		SELECT %[1]s FROM %[2]s
		 WHERE %[1]s LIKE ?
		 ORDER BY %[1]s REGEXP ? ASC, CHAR_LENGTH(%[1]s) DESC, %[1]s DESC
		 LIMIT 1 FOR UPDATE`, src.column, src.table,
	), idgen.LikePattern(entity), idgen.Pattern(entity)).Scan(&lastID)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last %s id: %w", entity, err)
	}
	return idgen.Parse(entity, lastID)
}

func (t *mysqlTx) setSequence(ctx context.Context, entity idgen.Entity, v int64) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE id_sequences SET last_value = ? WHERE entity = ?
	`, v, entity.String()); err != nil {
		return fmt.Errorf("advance sequence %s: %w", entity, err)
	}
	return nil
}

func (t *mysqlTx) NextID(ctx context.Context, entity idgen.Entity) (string, error) {
	last, err := t.lockSequence(ctx, entity)
	if err != nil {
		return "", err
	}
	next := last + 1
	if err := t.setSequence(ctx, entity, next); err != nil {
		return "", err
	}
	return idgen.Format(entity, next), nil
}

// ReserveID is a no-op for free-form ids that do not follow the entity format.
func (t *mysqlTx) ReserveID(ctx context.Context, entity idgen.Entity, id string) error {
	n, err := idgen.Parse(entity, id)
	if err != nil {
		return nil
	}
	last, err := t.lockSequence(ctx, entity)
	if err != nil {
		return err
	}
	if n <= last {
		return nil
	}
	return t.setSequence(ctx, entity, n)
}
