// Package main provides a CLI for scheduling and draining catalog sync jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixir/catalog-sync-service/internal/app"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Define CLI flags.
	runDue := flag.Bool("run-due", false, "Run every job that is due, then exit")
	refreshAll := flag.Bool("refresh-all", false, "Schedule the RefreshAll root job")
	maintenance := flag.Bool("maintenance", false, "Schedule the unused publication and folder autofill sweeps")
	flag.Parse()

	// Validate that exactly one action is specified.
	actionCount := 0
	for _, set := range []bool{*runDue, *refreshAll, *maintenance} {
		if set {
			actionCount++
		}
	}
	if actionCount == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify one of: -run-due, -refresh-all, -maintenance")
		return fmt.Errorf("no action specified")
	}
	if actionCount > 1 {
		return fmt.Errorf("specify only one action at a time")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging).With().Str("component", "jobctl").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := app.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	factory := repository.NewPgStoreFactory(db, logger)
	components, err := app.NewComponents(cfg, factory, nil, logger)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	components.Runner.SetDrainLock(db.AdvisoryLock(app.DrainLockKey))

	switch {
	case *runDue:
		summary, err := components.Runner.RunDue(ctx)
		if errors.Is(err, jobs.ErrDrainInProgress) {
			return fmt.Errorf("another process is draining; try again later")
		}
		if err != nil {
			return fmt.Errorf("run due jobs: %w", err)
		}
		logger.Info().
			Int("total", summary.Total).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("rescheduled", summary.Rescheduled).
			Msg("drain completed")
		return nil

	case *refreshAll:
		if err := jobs.ScheduleRefreshAll(ctx, factory, components.Enqueuer); err != nil {
			return fmt.Errorf("schedule refresh all: %w", err)
		}
		logger.Info().Msg("refresh all scheduled")
		return nil

	case *maintenance:
		if err := jobs.ScheduleMaintenance(ctx, factory, components.Enqueuer); err != nil {
			return fmt.Errorf("schedule maintenance: %w", err)
		}
		logger.Info().Msg("maintenance sweeps scheduled")
		return nil

	default:
		return fmt.Errorf("no action specified")
	}
}
