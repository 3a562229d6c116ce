package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/database"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/reconcile"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Components are the job pipeline pieces shared by the binaries.
type Components struct {
	Factory  repository.StoreFactory
	Metrics  *observability.Metrics
	Catalogs *catalog.Registry
	Enqueuer *queue.Enqueuer
	Handlers *jobs.Handlers
	Runner   *jobs.Runner
}

// NewComponents wires the catalogs, reconciler, handlers and runner over
// factory. metrics may be nil.
func NewComponents(cfg *config.Config, factory repository.StoreFactory, metrics *observability.Metrics, logger zerolog.Logger) (*Components, error) {
	cutoff, err := cfg.Reconcile.HistoricCutoffTime()
	if err != nil {
		return nil, fmt.Errorf("parse historic cutoff: %w", err)
	}

	retry := queue.RetryPolicy{
		Unit: domain.RetryUnit(cfg.Scheduler.DefaultRetryUnit),
		Size: cfg.Scheduler.DefaultRetrySize,
	}
	if retry.Size > 0 && retry.Unit.Duration() == 0 {
		return nil, fmt.Errorf("unknown default retry unit %q", cfg.Scheduler.DefaultRetryUnit)
	}

	enqueuer := queue.NewEnqueuer(retry, logger, queue.WithMetrics(metrics))
	catalogs := NewCatalogRegistry(cfg.Catalogs, metrics, logger)
	reconciler := reconcile.NewReconciler(reconcile.Config{
		HistoricCutoff: cutoff,
		NIHRSponsors:   cfg.Reconcile.NIHRSponsors,
	}, enqueuer, metrics, logger)

	handlers := jobs.NewHandlers(catalogs, reconciler, enqueuer, jobs.HandlersConfig{
		AutofillWindow: cfg.Reconcile.AutofillWindow,
	}, logger)
	runner := jobs.NewRunner(factory, handlers.NewDefaultRegistry(), jobs.RunnerConfig{
		BatchLimit: cfg.Scheduler.BatchLimit,
	}, metrics, logger)

	return &Components{
		Factory:  factory,
		Metrics:  metrics,
		Catalogs: catalogs,
		Enqueuer: enqueuer,
		Handlers: handlers,
		Runner:   runner,
	}, nil
}

// NewMetrics returns the service metrics, or nil when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig) *observability.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return observability.NewMetrics(cfg.Namespace)
}

// NewLogger builds the root logger from the logging config.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	})
}

// DrainLockKey is the advisory lock key shared by every process that drains
// async_jobs.
const DrainLockKey int64 = 0x63617473796e63 // "catsync"

// Connect opens the database and runs pending migrations when
// database.migration_auto_run is set.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*database.DB, error) {
	db, err := database.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("database connection established")

	if !cfg.MigrationAutoRun {
		return db, nil
	}

	migrator, err := database.NewMigrator(db, database.MigratorConfig{
		Path:  cfg.MigrationPath,
		Table: cfg.MigrationTable,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}
