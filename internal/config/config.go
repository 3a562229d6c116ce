// Package config provides configuration management for the catalog sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// EnvPrefix is the prefix of every environment variable the service reads.
const EnvPrefix = "CATSYNC"

// historicCutoffLayout is the date layout of reconcile.historic_cutoff.
const historicCutoffLayout = "2006-01-02"

// Config holds all configuration for the catalog sync service.
type Config struct {
	// Server contains HTTP operator API settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Catalogs contains external catalog API settings.
	Catalogs CatalogsConfig `mapstructure:"catalogs"`
	// Scheduler contains job runner and periodic trigger settings.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	// Reconcile contains reconciliation rules.
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	// Kafka contains Kafka publisher settings for the outbox relay.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Outbox contains outbox relay settings.
	Outbox OutboxConfig `mapstructure:"outbox"`
	// Trigger contains the Kafka refresh-request listener settings.
	Trigger TriggerConfig `mapstructure:"trigger"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the maximum keep-alive idle time.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from CATSYNC_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on worker startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// MigrationTable is the golang-migrate bookkeeping table.
	MigrationTable string `mapstructure:"migration_table"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
	// ApplicationName is reported to PostgreSQL in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`
	// SlowQueryThreshold logs statements slower than this at warn level.
	// Zero disables slow query logging.
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// CatalogsConfig holds configuration for the external catalogs.
type CatalogsConfig struct {
	// Scopus contains Elsevier Scopus and SciVal API settings.
	Scopus CatalogConfig `mapstructure:"scopus"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex CatalogConfig `mapstructure:"openalex"`
}

// CatalogConfig holds configuration for a single catalog API.
type CatalogConfig struct {
	// Enabled controls whether this catalog is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. CATSYNC_CATALOGS_SCOPUS_API_KEY).
	APIKey string `mapstructure:"-"`
	// InstToken is the Elsevier institutional token (loaded from CATSYNC_CATALOGS_SCOPUS_INST_TOKEN).
	InstToken string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email identifies the caller to APIs with a polite pool (OpenAlex mailto).
	Email string `mapstructure:"email"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the rate limiter burst.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the maximum retries on 429 and 5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxResults is the page size for list queries.
	MaxResults int `mapstructure:"max_results"`
	// CacheSize is the number of GET responses kept in the response cache.
	CacheSize int `mapstructure:"cache_size"`
	// CacheTTL is how long a cached response stays valid. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig holds job runner settings.
type SchedulerConfig struct {
	// PollInterval is how often the worker drains due jobs.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// BatchLimit caps the number of due jobs loaded per drain.
	BatchLimit int `mapstructure:"batch_limit"`
	// CronEnabled enables the periodic triggers in the worker.
	CronEnabled bool `mapstructure:"cron_enabled"`
	// RefreshAllCron is the cron expression that enqueues RefreshAll.
	RefreshAllCron string `mapstructure:"refresh_all_cron"`
	// MaintenanceCron is the cron expression that enqueues the maintenance sweeps.
	MaintenanceCron string `mapstructure:"maintenance_cron"`
	// DefaultRetryUnit is the retry unit for jobs scheduled without an explicit policy (hours, days).
	DefaultRetryUnit string `mapstructure:"default_retry_unit"`
	// DefaultRetrySize is the retry size for jobs scheduled without an explicit policy. Zero disables retries.
	DefaultRetrySize int `mapstructure:"default_retry_size"`
}

// ReconcileConfig holds reconciliation rules.
type ReconcileConfig struct {
	// HistoricCutoff is the date (YYYY-MM-DD) before which publications are flagged historic.
	HistoricCutoff string `mapstructure:"historic_cutoff"`
	// NIHRSponsors lists sponsor names that mark a sponsor as NIHR.
	NIHRSponsors []string `mapstructure:"nihr_sponsors"`
	// AutofillWindow is how far back AutoFillFolders looks for publications.
	AutofillWindow time.Duration `mapstructure:"autofill_window"`
}

// KafkaConfig holds Kafka publisher settings for the outbox relay.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish outbox events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// OutboxConfig holds outbox relay settings.
type OutboxConfig struct {
	// PollInterval is how often the relay polls for pending events.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// BatchSize is the number of events to publish per poll.
	BatchSize int `mapstructure:"batch_size"`
	// MaxAttempts is the number of publish attempts before an event is skipped.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// TriggerConfig holds the Kafka refresh-request listener settings.
type TriggerConfig struct {
	// Enabled controls whether the listener runs in the worker.
	Enabled bool `mapstructure:"enabled"`
	// Topic is the topic refresh requests are read from.
	Topic string `mapstructure:"topic"`
	// GroupID is the consumer group ID.
	GroupID string `mapstructure:"group_id"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}
	if c.ApplicationName != "" {
		params.Set("application_name", c.ApplicationName)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// HistoricCutoffTime parses HistoricCutoff. An empty value yields the zero
// time, which disables the historic flag.
func (c *ReconcileConfig) HistoricCutoffTime() (time.Time, error) {
	if c.HistoricCutoff == "" {
		return time.Time{}, nil
	}
	return time.Parse(historicCutoffLayout, c.HistoricCutoff)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catalog-sync-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Catalogs.Scopus.APIKey = os.Getenv(EnvPrefix + "_CATALOGS_SCOPUS_API_KEY")
	cfg.Catalogs.Scopus.InstToken = os.Getenv(EnvPrefix + "_CATALOGS_SCOPUS_INST_TOKEN")
	cfg.Catalogs.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_CATALOGS_OPENALEX_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "catsync")
	v.SetDefault("database.name", "catalog_sync")
	// Default to "require" for production security. Use CATSYNC_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.migration_table", "catalog_sync_schema_migrations")
	v.SetDefault("database.statement_cache_capacity", 512)
	v.SetDefault("database.application_name", "catalog-sync-service")
	v.SetDefault("database.slow_query_threshold", "500ms")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "catalog_sync")

	// Catalog defaults - Scopus (disabled by default, requires API key)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("catalogs.scopus.enabled", false)
	v.SetDefault("catalogs.scopus.base_url", "https://api.elsevier.com")
	v.SetDefault("catalogs.scopus.timeout", "30s")
	v.SetDefault("catalogs.scopus.rate_limit", 5.0)
	v.SetDefault("catalogs.scopus.burst_size", 5)
	v.SetDefault("catalogs.scopus.max_retries", 3)
	v.SetDefault("catalogs.scopus.max_results", 25)
	v.SetDefault("catalogs.scopus.cache_size", 1024)
	v.SetDefault("catalogs.scopus.cache_ttl", "10m")

	// Catalog defaults - OpenAlex
	v.SetDefault("catalogs.openalex.enabled", true)
	v.SetDefault("catalogs.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("catalogs.openalex.timeout", "30s")
	v.SetDefault("catalogs.openalex.rate_limit", 10.0)
	v.SetDefault("catalogs.openalex.burst_size", 10)
	v.SetDefault("catalogs.openalex.max_retries", 3)
	v.SetDefault("catalogs.openalex.max_results", 200)
	v.SetDefault("catalogs.openalex.cache_size", 1024)
	v.SetDefault("catalogs.openalex.cache_ttl", "10m")

	// Scheduler defaults
	v.SetDefault("scheduler.poll_interval", "30s")
	v.SetDefault("scheduler.batch_limit", 500)
	v.SetDefault("scheduler.cron_enabled", true)
	v.SetDefault("scheduler.refresh_all_cron", "0 2 * * 0")
	v.SetDefault("scheduler.maintenance_cron", "0 4 * * *")
	v.SetDefault("scheduler.default_retry_unit", "days")
	v.SetDefault("scheduler.default_retry_size", 1)

	// Reconcile defaults
	v.SetDefault("reconcile.historic_cutoff", "2014-01-01")
	v.SetDefault("reconcile.nihr_sponsors", []string{
		"National Institute for Health Research",
		"National Institute for Health and Care Research",
		"NIHR",
	})
	v.SetDefault("reconcile.autofill_window", "8760h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.outbox.catalog_sync_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Outbox relay defaults
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 10)

	// Trigger listener defaults
	v.SetDefault("trigger.enabled", false)
	v.SetDefault("trigger.topic", "catalog_sync.refresh_requests")
	v.SetDefault("trigger.group_id", "catalog-sync-trigger")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Database.HealthCheckPeriod <= 0 {
		return fmt.Errorf("database health_check_period must be positive")
	}
	if c.Database.SlowQueryThreshold < 0 {
		return fmt.Errorf("database slow_query_threshold must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate catalogs
	if c.Catalogs.Scopus.Enabled && c.Catalogs.Scopus.APIKey == "" {
		return fmt.Errorf("catalog scopus requires %s_CATALOGS_SCOPUS_API_KEY to be set", EnvPrefix)
	}
	for name, cat := range map[string]CatalogConfig{"scopus": c.Catalogs.Scopus, "openalex": c.Catalogs.OpenAlex} {
		if cat.Enabled && cat.RateLimit <= 0 {
			return fmt.Errorf("catalog %s rate_limit must be positive", name)
		}
	}

	// Validate scheduler
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll_interval must be positive")
	}
	if c.Scheduler.BatchLimit <= 0 {
		return fmt.Errorf("scheduler batch_limit must be positive")
	}
	switch c.Scheduler.DefaultRetryUnit {
	case "hours", "days":
	default:
		return fmt.Errorf("invalid scheduler default_retry_unit: %q", c.Scheduler.DefaultRetryUnit)
	}
	if c.Scheduler.DefaultRetrySize < 0 {
		return fmt.Errorf("scheduler default_retry_size must not be negative")
	}
	if c.Scheduler.CronEnabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		for name, spec := range map[string]string{
			"refresh_all_cron": c.Scheduler.RefreshAllCron,
			"maintenance_cron": c.Scheduler.MaintenanceCron,
		} {
			if _, err := parser.Parse(spec); err != nil {
				return fmt.Errorf("invalid scheduler %s %q: %w", name, spec, err)
			}
		}
	}

	// Validate reconcile rules
	if _, err := c.Reconcile.HistoricCutoffTime(); err != nil {
		return fmt.Errorf("invalid reconcile historic_cutoff %q: %w", c.Reconcile.HistoricCutoff, err)
	}
	if c.Reconcile.AutofillWindow < 0 {
		return fmt.Errorf("reconcile autofill_window must not be negative")
	}

	// Validate Kafka-backed components
	if (c.Kafka.Enabled || c.Trigger.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka or trigger is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when kafka is enabled")
	}
	if c.Trigger.Enabled && (c.Trigger.Topic == "" || c.Trigger.GroupID == "") {
		return fmt.Errorf("trigger topic and group_id are required when trigger is enabled")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox batch_size must be positive")
	}

	return nil
}
