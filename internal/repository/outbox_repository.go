package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// OutboxRepository stores reconciliation events until the relay publishes them.
type OutboxRepository interface {
	// Insert writes an event in the caller's transaction.
	Insert(ctx context.Context, event *domain.OutboxEvent) error

	// FetchPending returns up to limit unpublished events with fewer than
	// maxAttempts delivery attempts, oldest first.
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]*domain.OutboxEvent, error)

	// MarkPublished stamps published_at on the given events.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error

	// MarkFailed records a failed delivery attempt.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}
