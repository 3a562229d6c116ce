package repository

import (
	"context"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// JobState selects jobs by run state in a JobFilter.
type JobState string

const (
	// JobStatePending selects jobs with a scheduled_at.
	JobStatePending JobState = "pending"

	// JobStateFailed selects jobs whose last run left an error.
	JobStateFailed JobState = "failed"

	// JobStateAll selects every job.
	JobStateAll JobState = "all"
)

// IsValid reports whether s is a known job state.
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateFailed, JobStateAll:
		return true
	default:
		return false
	}
}

// JobFilter narrows a job listing.
type JobFilter struct {
	State   JobState
	JobType *domain.JobType
	Limit   int
	Offset  int
}

// Validate validates the filter and applies pagination defaults.
func (f *JobFilter) Validate() error {
	if f.State == "" {
		f.State = JobStateAll
	}
	if !f.State.IsValid() {
		return domain.NewValidationError("state", "must be one of pending, failed, all")
	}
	if f.JobType != nil && !f.JobType.IsValid() {
		return domain.NewValidationError("job_type", "unknown job type")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}

// JobRepository is the durable async job queue.
type JobRepository interface {
	// Schedule inserts a job or, when a row with the same
	// (job_type, entity_id, entity_id_string) exists, overwrites its
	// scheduled_at, error and retry policy in place. Returns the row ID.
	Schedule(ctx context.Context, job *domain.Job) (int64, error)

	// Due returns up to limit jobs with scheduled_at at or before now,
	// ordered by scheduled_at then ID.
	Due(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)

	// Save persists the run state of a job: scheduled_at, error and last_run_at.
	Save(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	// Returns domain.ErrNotFound if no matching job exists.
	Get(ctx context.Context, id int64) (*domain.Job, error)

	// List returns jobs matching the filter, most recently updated first,
	// together with the total match count.
	List(ctx context.Context, filter JobFilter) ([]*domain.Job, int64, error)
}
