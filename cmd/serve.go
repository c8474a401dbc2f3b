package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/config"
	httpSrv "github.com/jmehdipour/utility-billing/internal/http"
	"github.com/jmehdipour/utility-billing/internal/logger"
	"github.com/jmehdipour/utility-billing/internal/service/charges"
	"github.com/jmehdipour/utility-billing/internal/service/customer"
	"github.com/jmehdipour/utility-billing/internal/service/directory"
	"github.com/jmehdipour/utility-billing/internal/service/ledger"
	"github.com/jmehdipour/utility-billing/internal/service/lifecycle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log)
		defer func() { _ = log.Sync() }()

		b, err := openBackend(cfg, log)
		if err != nil {
			return err
		}
		defer b.Close()

		var cache charges.Cache
		if b.Redis != nil {
			cache = charges.NewRedisCache(b.Redis, cfg.Charges.CacheTTL)
		}

		svcs := httpSrv.Services{
			Customers: customer.New(b.Store, log),
			Charges:   charges.New(b.Store, cache, log),
			Directory: directory.New(b.Store, log),
			Ledger:    ledger.New(b.Store, b.Replica, log),
			Lifecycle: lifecycle.New(b.Store, cfg.Kafka.RequestsTopic, log),
		}
		server := httpSrv.NewServer(cfg, b.Store, svcs, b.Redis, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
