package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/logger"
	"github.com/jmehdipour/utility-billing/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers, accounts, charges and bills",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log)

		st, closeDB, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		log.Info("seeding demo data")
		if err := seed.ApplyMySQL(context.Background(), st.DB(), seed.Demo()); err != nil {
			return err
		}
		log.Info("seed completed")
		return nil
	},
}
