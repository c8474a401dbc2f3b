package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// MySQL server error numbers the store reacts to.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrNoSuchTable     = 1146
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

const maxTxAttempts = 3

// MySQLStore is the sqlx-backed Store.
type MySQLStore struct {
	queries
	db *sqlx.DB
}

// queries holds statements shared by the pool and by open transactions.
type queries struct {
	q sqlx.ExtContext
}

type mysqlTx struct {
	queries
	tx *sqlx.Tx
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Tx    = (*mysqlTx)(nil)
)

func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{queries: queries{q: db}, db: db}
}

// DB exposes the pool to the worker repositories.
func (s *MySQLStore) DB() *sqlx.DB { return s.db }

func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithTx runs fn in a transaction and retries it when MySQL picks it as a
// deadlock victim or a lock wait times out.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *MySQLStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	t, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()

	if err := fn(&mysqlTx{queries: queries{q: t}, tx: t}); err != nil {
		return err
	}
	return t.Commit()
}

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isRetryable(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlErrDeadlock || n == mysqlErrLockWaitTimeout
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
