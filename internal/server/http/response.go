package httpserver

import (
	"time"

	"github.com/helixir/catalog-sync-service/internal/database"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/jobs"
)

// Job response types for JSON serialization.

type jobResponse struct {
	ID             int64      `json:"id"`
	JobType        string     `json:"job_type"`
	EntityID       *int64     `json:"entity_id,omitempty"`
	EntityIDString *string    `json:"entity_id_string,omitempty"`
	State          string     `json:"state"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	RetryEnabled   bool       `json:"retry_enabled"`
	RetryUnit      string     `json:"retry_unit"`
	RetrySize      int        `json:"retry_size"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type listJobsResponse struct {
	Jobs       []jobResponse `json:"jobs"`
	TotalCount int64         `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

type runDueResponse struct {
	jobs.RunSummary
	Duration string `json:"duration"`
}

type readinessResponse struct {
	Status   string                `json:"status"`
	Database database.HealthStatus `json:"database"`
}

type scheduledResponse struct {
	Scheduled []string `json:"scheduled"`
}

// Job states reported by the API.
const (
	jobStatePending   = "pending"
	jobStateFailed    = "failed"
	jobStateCompleted = "completed"
)

// jobState derives the reported state of a job. A failed job that is still
// scheduled is awaiting its retry and reports pending.
func jobState(j *domain.Job) string {
	switch {
	case j.IsPending():
		return jobStatePending
	case j.IsFailed():
		return jobStateFailed
	default:
		return jobStateCompleted
	}
}

func domainJobToResponse(j *domain.Job) jobResponse {
	return jobResponse{
		ID:             j.ID,
		JobType:        j.JobType.String(),
		EntityID:       j.EntityID,
		EntityIDString: j.EntityIDString,
		State:          jobState(j),
		ScheduledAt:    j.ScheduledAt,
		Error:          j.Error,
		RetryEnabled:   j.RetryEnabled,
		RetryUnit:      string(j.RetryUnit),
		RetrySize:      j.RetrySize,
		LastRunAt:      j.LastRunAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}
