package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/db"
	"github.com/jmehdipour/utility-billing/internal/dispatcher"
	"github.com/jmehdipour/utility-billing/internal/kafka"
	"github.com/jmehdipour/utility-billing/internal/repository"
	"github.com/jmehdipour/utility-billing/internal/worker"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Notify customers about request lifecycle events",
	RunE:  runNotifier,
}

// providersFrom builds one breaker-guarded HTTP provider per enabled entry.
func providersFrom(pcs []config.ProviderConfig) []dispatcher.Provider {
	var provs []dispatcher.Provider
	for _, pc := range pcs {
		if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
			continue
		}
		provs = append(provs, dispatcher.NewHTTPProvider(
			pc.Name,
			strings.TrimRight(pc.BaseURL, "/"),
			pc.Path,
			pc.TimeoutMs,
			pc.Breaker.FailThreshold,
			pc.Breaker.OpenForMs,
		))
	}
	return provs
}

func runNotifier(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	provs := providersFrom(cfg.Providers)
	if len(provs) == 0 {
		return fmt.Errorf("no providers enabled in config")
	}
	disp := dispatcher.NewDispatcher(provs, cfg.Notifier.MaxRetryAttempts)

	dbx, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()
	store := repository.NewMySQLStore(dbx)

	kc := kafka.ConfigFrom(cfg.Kafka)
	if kc.GroupID == "" {
		kc.GroupID = "ubms-notifier"
	}
	consumer := kafka.NewConsumerFromConfig(kc)
	defer consumer.Close()

	sink := worker.SQLSink{DB: dbx, Repo: repository.NewNotificationsRepository()}
	w := worker.NewNotifier(consumer, store, disp, sink, log)

	// tune knobs
	if cfg.Notifier.WorkerCount > 0 {
		w.Workers = cfg.Notifier.WorkerCount
	}
	if cfg.Notifier.BatchSize > 0 {
		w.BatchSize = cfg.Notifier.BatchSize
	}
	if cfg.Notifier.BatchWait > 0 {
		w.BatchWait = cfg.Notifier.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started",
		zap.String("topic", kc.Topic),
		zap.String("group", kc.GroupID),
		zap.Int("workers", w.Workers),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait))

	return w.Run(ctx)
}
