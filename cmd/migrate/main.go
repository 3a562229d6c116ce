// Package main applies, rolls back and inspects the catalog sync schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/app"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Apply all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Apply N migrations (negative rolls back)")
	to := flag.Int("to", -1, "Migrate up or down to exactly this version")
	status := flag.Bool("status", false, "Print the recorded schema version")
	force := flag.Int("force", -1, "Record a version as clean without running it")
	migrationsPath := flag.String("path", "", "Override database.migration_path")
	flag.Parse()

	actions := 0
	for _, set := range []bool{*up, *down, *steps != 0, *to >= 0, *status, *force >= 0} {
		if set {
			actions++
		}
	}
	switch {
	case actions == 0:
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify one of: -up, -down, -steps N, -to V, -status, -force V")
		return fmt.Errorf("no action specified")
	case actions > 1:
		return fmt.Errorf("specify only one action at a time")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Console output regardless of logging.format.
	logCfg := cfg.Logging
	logCfg.Format = "console"
	logCfg.Output = "stdout"
	logger := app.NewLogger(logCfg).With().Str("component", "migrate").Logger()

	migratorCfg := database.MigratorConfig{
		Path:  cfg.Database.MigrationPath,
		Table: cfg.Database.MigrationTable,
	}
	if *migrationsPath != "" {
		migratorCfg.Path = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migratorCfg, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case *up:
		err = migrator.Up()
	case *down:
		err = migrator.Down()
	case *steps != 0:
		err = migrator.Steps(*steps)
	case *to >= 0:
		err = migrator.To(uint(*to))
	case *force >= 0:
		err = migrator.Force(*force)
	}
	if err != nil {
		return err
	}

	return printStatus(migrator, logger)
}

func printStatus(migrator *database.Migrator, logger zerolog.Logger) error {
	st, err := migrator.Status()
	if err != nil {
		return err
	}
	if !st.Applied {
		logger.Info().Msg("no migrations applied")
		return nil
	}
	logger.Info().
		Uint("version", st.Version).
		Bool("dirty", st.Dirty).
		Msg("current schema version")
	return nil
}
