package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/db"
	"github.com/jmehdipour/utility-billing/internal/kafka"
	"github.com/jmehdipour/utility-billing/internal/repository"
	"github.com/jmehdipour/utility-billing/internal/worker"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish committed outbox events to Kafka",
	RunE:  runRelay,
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	dbx, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	r := worker.NewOutboxRelay(dbx, repository.NewOutboxRepository(), producer, log)
	if cfg.Outbox.BatchSize > 0 {
		r.BatchSize = cfg.Outbox.BatchSize
	}
	if cfg.Outbox.PollInterval > 0 {
		r.PollInterval = cfg.Outbox.PollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("outbox relay started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.Int("batch_size", r.BatchSize),
		zap.Duration("poll_interval", r.PollInterval))

	return r.Run(ctx)
}
