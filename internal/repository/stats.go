package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

func (r queries) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := sqlx.GetContext(ctx, r.q, &st, `
		SELECT
		    (SELECT COUNT(*) FROM customers)                               AS customers,
		    (SELECT COUNT(*) FROM accounts)                                AS accounts,
		    (SELECT COUNT(*) FROM meters   WHERE status = 'Active')        AS active_meters,
		    (SELECT COUNT(*) FROM requests WHERE status = 'Pending')       AS pending_requests,
		    (SELECT COUNT(*) FROM bills    WHERE status <> 'Paid')         AS unpaid_bills,
		    (SELECT COALESCE(SUM(amount), 0) FROM bills WHERE status <> 'Paid') AS unpaid_amount
	`)
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Tables lists the tables reported by TableCounts.
var Tables = []string{
	"customers", "accounts", "meters", "charges", "bills", "requests",
	"id_sequences", "outbox", "notifications", "schema_migrations",
}

// TableCounts returns the row count of every known table. Missing tables
// report -1 instead of failing the whole inspection.
func (s *MySQLStore) TableCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Tables))
	for _, tbl := range Tables {
		var n int64
		err := s.db.QueryRowxContext(ctx, "SELECT COUNT(*) FROM "+tbl).Scan(&n)
		if mysqlErrNumber(err) == mysqlErrNoSuchTable {
			out[tbl] = -1
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", tbl, err)
		}
		out[tbl] = n
	}
	return out, nil
}
