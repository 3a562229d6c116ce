package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var _ OutboxRepository = (*PgOutboxRepository)(nil)

// PgOutboxRepository is a PostgreSQL implementation of OutboxRepository.
type PgOutboxRepository struct {
	db DBTX
}

// NewPgOutboxRepository creates a new PostgreSQL outbox repository.
func NewPgOutboxRepository(db DBTX) *PgOutboxRepository {
	return &PgOutboxRepository{db: db}
}

// Insert writes an event in the caller's transaction.
func (r *PgOutboxRepository) Insert(ctx context.Context, event *domain.OutboxEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		event.EventID, event.AggregateType, event.AggregateID, event.EventType, event.Payload, event.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("outbox_event", event.EventID.String())
		}
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPending returns unpublished events oldest first.
func (r *PgOutboxRepository) FetchPending(ctx context.Context, limit, maxAttempts int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, attempts, last_error,
			created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(
			&e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &e.LastError,
			&e.CreatedAt, &e.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps published_at on the given events.
func (r *PgOutboxRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE outbox_events SET
			published_at = $1,
			attempts = attempts + 1
		WHERE id = ANY($2)`

	if _, err := r.db.Exec(ctx, query, at, ids); err != nil {
		return fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *PgOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE outbox_events SET
			attempts = attempts + 1,
			last_error = $2
		WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, message); err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}
