// Package trigger provides a Kafka listener for refresh requests published by
// other services, such as a researcher profile being linked or edited.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Refresh request kinds.
const (
	KindAcademic = "academic"
	KindSource   = "source"
)

// Message outcomes used as the trigger metric label.
const (
	OutcomeScheduled = "scheduled"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Failed reads back off from readRetryMin, doubling up to readRetryMax.
const (
	readRetryMin = 500 * time.Millisecond
	readRetryMax = 30 * time.Second
)

// ErrInvalidRequest marks messages that can never be scheduled.
var ErrInvalidRequest = errors.New("invalid refresh request")

// RefreshRequest asks for an academic or a source to be refreshed.
type RefreshRequest struct {
	Kind string `json:"kind" validate:"required,oneof=academic source"`
	ID   int64  `json:"id" validate:"required,gt=0"`
}

// JobType returns the job type scheduled for the request.
func (r RefreshRequest) JobType() domain.JobType {
	if r.Kind == KindSource {
		return domain.JobTypeSourceRefresh
	}
	return domain.JobTypeAcademicRefresh
}

// MessageReader is the subset of *kafka.Reader used by the listener.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config holds configuration for the Kafka reader.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic refresh requests are read from.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// NewKafkaReader creates a consumer-group reader for cfg.
func NewKafkaReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
}

// Listener consumes refresh requests and schedules the matching jobs.
type Listener struct {
	reader   MessageReader
	factory  repository.StoreFactory
	enqueuer *queue.Enqueuer
	validate *validator.Validate
	metrics  *observability.Metrics
	logger   zerolog.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// NewListener creates a refresh-request listener. metrics may be nil.
func NewListener(
	reader MessageReader,
	factory repository.StoreFactory,
	enqueuer *queue.Enqueuer,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Listener {
	return &Listener{
		reader:   reader,
		factory:  factory,
		enqueuer: enqueuer,
		validate: validator.New(),
		metrics:  metrics,
		logger:   logger.With().Str("component", "refresh_listener").Logger(),
		wait:     sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting refresh listener")

	delay := readRetryMin
	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("refresh listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Dur("retry_in", delay).Msg("failed to read message from Kafka")
			if err := l.wait(ctx, delay); err != nil {
				l.logger.Info().Msg("refresh listener stopped via context cancellation")
				return err
			}
			delay = min(delay*2, readRetryMax)
			continue
		}
		delay = readRetryMin

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received refresh request")

		outcome := OutcomeScheduled
		if err := l.HandleMessage(ctx, msg); err != nil {
			outcome = OutcomeFailed
			if errors.Is(err, ErrInvalidRequest) {
				outcome = OutcomeInvalid
			}
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to handle refresh request")
		}
		if l.metrics != nil {
			l.metrics.RecordTriggerMessage(outcome)
		}
	}
}

// HandleMessage decodes one message and schedules its job.
func (l *Listener) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var req RefreshRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := l.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	job, err := jobs.ScheduleEntity(ctx, l.factory, l.enqueuer, req.JobType(), req.ID)
	if err != nil {
		return fmt.Errorf("schedule %s refresh %d: %w", req.Kind, req.ID, err)
	}

	l.logger.Info().
		Str("kind", req.Kind).
		Int64("entity_id", req.ID).
		Int64("job_id", job.ID).
		Msg("refresh scheduled")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing refresh listener")
	return l.reader.Close()
}
