package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 5
)

// Header keys set on every published message.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// MessageWriter is the subset of *kafka.Writer used by the relay.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterConfig configures the Kafka writer.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
}

// NewKafkaWriter creates a writer that hashes message keys to partitions and
// waits for all in-sync replicas.
func NewKafkaWriter(cfg WriterConfig) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	if cfg.BatchSize > 0 {
		w.BatchSize = cfg.BatchSize
	}
	if cfg.BatchTimeout > 0 {
		w.BatchTimeout = cfg.BatchTimeout
	}
	return w
}

// RelayConfig configures a Relay.
type RelayConfig struct {
	// PollInterval is the delay between polls.
	PollInterval time.Duration
	// BatchSize caps the events published per poll.
	BatchSize int
	// MaxAttempts is the number of failed publishes after which an event is
	// no longer picked up.
	MaxAttempts int
}

// Relay publishes pending outbox events.
type Relay struct {
	factory repository.StoreFactory
	writer  MessageWriter
	cfg     RelayConfig
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRelay creates a Relay. metrics may be nil.
func NewRelay(factory repository.StoreFactory, writer MessageWriter, cfg RelayConfig, metrics *observability.Metrics, logger zerolog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Relay{
		factory: factory,
		writer:  writer,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "outbox_relay").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Dur("poll_interval", r.cfg.PollInterval).Msg("starting outbox relay")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.PublishPending(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error().Err(err).Msg("outbox publish failed")
				}
				break
			}
			// A full batch means more events may be waiting.
			if n < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped via context cancellation")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PublishPending publishes one batch of pending events and returns how many
// were published. A failed write marks every event of the batch as failed.
func (r *Relay) PublishPending(ctx context.Context) (int, error) {
	store, err := r.factory.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin store: %w", err)
	}
	defer store.Close(ctx)

	events, err := store.Outbox().FetchPending(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, Message(e))
		ids = append(ids, e.EventID)
	}

	if writeErr := r.writer.WriteMessages(ctx, msgs...); writeErr != nil {
		for _, e := range events {
			if err := store.Outbox().MarkFailed(ctx, e.EventID, writeErr.Error()); err != nil {
				return 0, fmt.Errorf("mark event %s failed: %w", e.EventID, err)
			}
			if r.metrics != nil {
				r.metrics.RecordOutboxFailed()
			}
		}
		if err := store.Commit(ctx); err != nil {
			return 0, fmt.Errorf("commit failed attempts: %w", err)
		}
		return 0, fmt.Errorf("write %d events: %w", len(events), writeErr)
	}

	if err := store.Outbox().MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}
	if err := store.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit published events: %w", err)
	}

	if r.metrics != nil {
		r.metrics.RecordOutboxPublished(len(events))
	}
	r.logger.Debug().Int("events", len(events)).Msg("outbox events published")
	return len(events), nil
}

// Close closes the underlying writer.
func (r *Relay) Close() error {
	r.logger.Info().Msg("closing outbox relay")
	return r.writer.Close()
}

// Message converts an outbox event to a Kafka message.
func Message(e *domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.AggregateType + ":" + e.AggregateID),
		Value: e.Payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(e.EventID.String())},
			{Key: HeaderEventType, Value: []byte(e.EventType)},
			{Key: HeaderAggregateType, Value: []byte(e.AggregateType)},
		},
	}
}
