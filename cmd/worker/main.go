// Package main provides the entry point for the catalog sync job worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/catalog-sync-service/internal/app"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/outbox"
	"github.com/helixir/catalog-sync-service/internal/repository"
	"github.com/helixir/catalog-sync-service/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging).With().Str("component", "worker").Logger()
	logger.Info().Msg("catalog-sync-service worker starting")

	// Set up context with graceful shutdown via OS signals.
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

	// A failing relay or listener cancels gctx and stops the whole worker.
	g, gctx := errgroup.WithContext(ctx)

	// Periodic triggers only enqueue; the poll loop below executes.
	if cfg.Scheduler.CronEnabled {
		triggers, err := jobs.NewTriggers(jobs.TriggersConfig{
			RefreshAllCron:  cfg.Scheduler.RefreshAllCron,
			MaintenanceCron: cfg.Scheduler.MaintenanceCron,
		}, factory, components.Enqueuer, logger)
		if err != nil {
			return fmt.Errorf("create triggers: %w", err)
		}
		triggers.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			triggers.Stop(stopCtx)
		}()
	}

	if cfg.Kafka.Enabled {
		relay := outbox.NewRelay(factory, outbox.NewKafkaWriter(outbox.WriterConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}), outbox.RelayConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
		}, metrics, logger)
		defer closeLogged(logger, "outbox relay", relay.Close)

		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("outbox relay started")
	}

	if cfg.Trigger.Enabled {
		listener := trigger.NewListener(trigger.NewKafkaReader(trigger.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Trigger.Topic,
			GroupID: cfg.Trigger.GroupID,
		}), factory, components.Enqueuer, metrics, logger)
		defer closeLogged(logger, "refresh listener", listener.Close)

		g.Go(func() error {
			if err := listener.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("refresh listener: %w", err)
			}
			return nil
		})
		logger.Info().
			Str("topic", cfg.Trigger.Topic).
			Str("group_id", cfg.Trigger.GroupID).
			Msg("refresh listener started")
	}

	logger.Info().
		Dur("poll_interval", cfg.Scheduler.PollInterval).
		Int("batch_limit", cfg.Scheduler.BatchLimit).
		Msg("starting job poll loop")

	g.Go(func() error {
		poll(gctx, components.Runner, cfg.Scheduler.PollInterval, logger)
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("worker component failed")
	}
	logger.Info().Msg("catalog-sync-service worker stopped")
	return err
}

// poll drains due jobs on every tick until ctx is cancelled. Drains never
// overlap.
func poll(ctx context.Context, runner *jobs.Runner, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// The runner logs each completed drain itself.
		_, err := runner.RunDue(ctx)
		switch {
		case errors.Is(err, jobs.ErrDrainInProgress):
			logger.Debug().Msg("another process is draining, skipping tick")
		case err != nil && ctx.Err() == nil:
			logger.Error().Err(err).Msg("drain failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("poll loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func closeLogged(logger zerolog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("component_name", name).Msg("close failed")
	}
}
