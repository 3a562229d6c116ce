// Package queue schedules async jobs into the caller's unit of work.
//
// The reconciliation engine and the job definitions both schedule follow-on
// work. They go through an Enqueuer so that the default retry policy and the
// scheduling metrics are applied in one place.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// RetryPolicy is the backoff applied to jobs scheduled without one. Jobs
// marked WithoutRetry keep no policy. A zero Size disables retries.
type RetryPolicy struct {
	Unit domain.RetryUnit
	Size int
}

// Enqueuer schedules jobs through a repository.Store.
type Enqueuer struct {
	defaults RetryPolicy
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures an Enqueuer.
type Option func(*Enqueuer)

// WithMetrics records every scheduled job.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Enqueuer) { e.metrics = m }
}

// WithClock overrides the clock used for immediate jobs.
func WithClock(now func() time.Time) Option {
	return func(e *Enqueuer) { e.now = now }
}

// NewEnqueuer creates an Enqueuer applying defaults to jobs without a retry policy.
func NewEnqueuer(defaults RetryPolicy, logger zerolog.Logger, opts ...Option) *Enqueuer {
	e := &Enqueuer{
		defaults: defaults,
		logger:   logger.With().Str("component", "enqueuer").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the enqueuer's current time.
func (e *Enqueuer) Now() time.Time {
	return e.now()
}

// Enqueue schedules each job in store. Scheduling a job whose deduplication
// key already exists reschedules the existing row.
func (e *Enqueuer) Enqueue(ctx context.Context, store repository.Store, jobs ...*domain.Job) error {
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if !job.JobType.IsValid() {
			return fmt.Errorf("enqueue %s: %w", job.JobType, domain.ErrUnknownJobType)
		}
		if job.ScheduledAt == nil {
			at := e.now()
			job.ScheduledAt = &at
		}
		if !job.HasRetryPolicy() && e.defaults.Size > 0 {
			job.WithRetry(e.defaults.Unit, e.defaults.Size)
		}

		id, err := store.Jobs().Schedule(ctx, job)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", job.Key(), err)
		}
		job.ID = id

		if e.metrics != nil {
			e.metrics.RecordJobScheduled(job.JobType.String())
		}
		e.logger.Debug().
			Int64("job_id", id).
			Str("job_key", job.Key()).
			Time("scheduled_at", *job.ScheduledAt).
			Msg("job scheduled")
	}
	return nil
}

// Entity schedules an immediate job for an integer entity.
func (e *Enqueuer) Entity(ctx context.Context, store repository.Store, jobType domain.JobType, entityID int64) error {
	return e.Enqueue(ctx, store, domain.NewEntityJob(jobType, entityID, e.now()))
}
