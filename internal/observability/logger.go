package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every log line as the service field.
const ServiceName = "catalog-sync-service"

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string
	// Format is json, or console/pretty for human output.
	Format string
	// Output is stdout, stderr or a file path opened for append.
	Output string
	AddSource  bool
	TimeFormat string
}

// DefaultLoggingConfig returns JSON info-level logging to stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates the root logger. An unopenable output file falls back
// to stdout and the failure is logged on the returned logger.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	output, openErr := openOutput(cfg.Output)

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	builder := zerolog.New(output).With().Timestamp().Str("service", ServiceName)
	if cfg.AddSource {
		builder = builder.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	logger := builder.Logger().Level(level)

	if openErr != nil {
		logger.Warn().Err(openErr).Str("output", cfg.Output).Msg("log output unavailable, using stdout")
	}
	return logger
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stdout, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// parseLevel maps a level name to zerolog, accepting "warning" and
// defaulting to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// FromContext annotates base with the request and job carried by ctx.
func FromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	lc := base.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if jobType, jobID := JobFromContext(ctx); jobType != "" {
		lc = lc.Str("job_type", jobType).Int64("job_id", jobID)
	}
	return lc.Logger()
}

// WithJobContext adds job identity fields to a logger.
func WithJobContext(logger zerolog.Logger, jobType string, jobID int64) zerolog.Logger {
	return logger.With().
		Str("job_type", jobType).
		Int64("job_id", jobID).
		Logger()
}

// WithEntityContext adds the target entity of a job to a logger. Absent
// parts are omitted.
func WithEntityContext(logger zerolog.Logger, entityID *int64, entityIDString *string) zerolog.Logger {
	ctx := logger.With()
	if entityID != nil {
		ctx = ctx.Int64("entity_id", *entityID)
	}
	if entityIDString != nil {
		ctx = ctx.Str("entity_id_string", *entityIDString)
	}
	return ctx.Logger()
}

// WithCatalogContext adds catalog record fields to a logger.
func WithCatalogContext(logger zerolog.Logger, catalog, identifier string) zerolog.Logger {
	return logger.With().
		Str("catalog", catalog).
		Str("catalog_identifier", identifier).
		Logger()
}
