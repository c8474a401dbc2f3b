package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/db"
	"github.com/jmehdipour/utility-billing/internal/logger"
	"github.com/jmehdipour/utility-billing/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		applied, err := db.Migrate(context.Background(), sqlDB, migrations.FS, log)
		if err != nil {
			return err
		}
		log.Info("migration complete", zap.Strings("applied", applied))
		return nil
	},
}
