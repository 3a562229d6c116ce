// Package main provides the entry point for the catalog sync operator HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/catalog-sync-service/internal/app"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/repository"
	httpserver "github.com/helixir/catalog-sync-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging).With().Str("component", "server").Logger()
	logger.Info().Msg("catalog-sync-service server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := app.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := app.NewMetrics(cfg.Metrics)
	factory := repository.NewPgStoreFactory(db, logger)
	components, err := app.NewComponents(cfg, factory, metrics, logger)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	components.Runner.SetDrainLock(db.AdvisoryLock(app.DrainLockKey))

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
	}

	httpSrv := httpserver.NewServer(httpCfg, factory, components.Runner, components.Enqueuer, db, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	logger.Info().
		Str("http_address", httpCfg.Address).
		Str("metrics_path", httpCfg.MetricsPath).
		Msg("catalog-sync-service is ready")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("catalog-sync-service shutdown complete")
	return nil
}
