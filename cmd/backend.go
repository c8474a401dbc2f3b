package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/db"
	"github.com/jmehdipour/utility-billing/internal/repository"
	"github.com/jmehdipour/utility-billing/internal/repository/memory"
	"github.com/jmehdipour/utility-billing/internal/seed"
)

// backend is the set of stores a process talks to.
type backend struct {
	Store   repository.Store
	MySQL   *repository.MySQLStore // nil for the memory driver
	Replica repository.BillReader  // nil unless ClickHouse is enabled
	Redis   *redis.Client          // nil unless Redis is enabled
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackend connects the primary store and the optional cache and replica.
// The memory driver starts from the demo dataset.
func openBackend(cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.Store.Driver {
	case "memory":
		st := memory.New()
		seed.ApplyMemory(st, seed.Demo())
		b.Store = st
		log.Warn("using in-memory store; data is lost on exit")
	case "", "mysql":
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		b.closers = append(b.closers, sqlDB.Close)
		b.MySQL = repository.NewMySQLStore(sqlDB)
		b.Store = b.MySQL
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Redis.Enabled {
		rdb, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		b.closers = append(b.closers, rdb.Close)
		b.Redis = rdb
	}

	if cfg.ClickHouse.Enabled {
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("clickhouse connect: %w", err)
		}
		b.closers = append(b.closers, chDB.Close)
		b.Replica = repository.NewCHBillsRepository(chDB)
	}

	return b, nil
}

// openMySQL is used by commands that only make sense against MySQL.
func openMySQL(cfg config.Config) (*repository.MySQLStore, func(), error) {
	sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connect: %w", err)
	}
	return repository.NewMySQLStore(sqlDB), func() { _ = sqlDB.Close() }, nil
}
