package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// DefaultMigrationTable is used when MigratorConfig.Table is empty.
const DefaultMigrationTable = "catalog_sync_schema_migrations"

// MigratorConfig selects the migration source and bookkeeping table.
type MigratorConfig struct {
	Path  string
	Table string
}

// MigrationStatus describes the schema version recorded in the database.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	// Applied is false on a database no migration ever ran against.
	Applied bool
}

// Migrator applies the files under migrations/ with golang-migrate.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator wires golang-migrate to the pool of db.
func NewMigrator(db *DB, cfg MigratorConfig, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultMigrationTable
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: cfg.Table,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.Path, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	logger = logger.With().
		Str("migrations_path", cfg.Path).
		Str("migrations_table", cfg.Table).
		Logger()
	m.Log = migrateLogger{logger: logger}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger,
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %d", n), func() error {
		return m.migrate.Steps(n)
	})
}

// To migrates up or down to exactly version.
func (m *Migrator) To(version uint) error {
	return m.run(fmt.Sprintf("to %d", version), func() error {
		return m.migrate.Migrate(version)
	})
}

// Force records version as clean without running anything. Used to recover
// from a migration that failed halfway.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Status reports the recorded schema version.
func (m *Migrator) Status() (MigrationStatus, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and the database/sql wrapper.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return errors.Join(wrapIf("close source", sourceErr), wrapIf("close database", dbErr))
}

func (m *Migrator) run(action string, fn func() error) error {
	m.logger.Info().Str("action", action).Msg("running migrations")

	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info().Str("action", action).Msg("schema already up to date")
		return nil
	case errors.Is(err, os.ErrNotExist):
		// Steps past the last file.
		m.logger.Info().Str("action", action).Msg("no more migrations available")
		return nil
	default:
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	status, err := m.Status()
	if err != nil {
		return err
	}
	m.logger.Info().
		Str("action", action).
		Uint("version", status.Version).
		Bool("dirty", status.Dirty).
		Msg("migrations applied")
	return nil
}

func wrapIf(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

// migrateLogger routes golang-migrate progress output to zerolog.
type migrateLogger struct {
	logger zerolog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return l.logger.GetLevel() <= zerolog.DebugLevel
}
