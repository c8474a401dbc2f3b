package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/utility-billing/internal/config"
)

// NewClickHouseConnection opens the bill read-model pool,
// e.g. clickhouse://default:@localhost:9000/ubms?dial_timeout=5s&compress=true
func NewClickHouseConnection(cfg config.ClickHouseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	return open("clickhouse", cfg.DatabaseConfig, 3*time.Second)
}
