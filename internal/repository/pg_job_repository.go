package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var _ JobRepository = (*PgJobRepository)(nil)

// PgJobRepository is a PostgreSQL implementation of JobRepository.
type PgJobRepository struct {
	db DBTX
}

// NewPgJobRepository creates a new PostgreSQL job repository.
func NewPgJobRepository(db DBTX) *PgJobRepository {
	return &PgJobRepository{db: db}
}

const jobColumns = `id, job_type, entity_id, entity_id_string, scheduled_at, error,
			retry_enabled, retry_unit, retry_size, last_run_at, created_at, updated_at`

// Schedule upserts a job on its deduplication key.
func (r *PgJobRepository) Schedule(ctx context.Context, job *domain.Job) (int64, error) {
	if job == nil {
		return 0, domain.NewValidationError("job", "job cannot be nil")
	}
	if !job.JobType.IsValid() {
		return 0, domain.NewValidationError("job_type", fmt.Sprintf("unknown job type %q", job.JobType))
	}
	if job.RetryUnit == "" {
		job.RetryUnit = domain.RetryUnitDays
	}
	if job.RetrySize < 0 {
		return 0, domain.NewValidationError("retry_size", "must not be negative")
	}

	query := `
		INSERT INTO async_jobs (
			job_type, entity_id, entity_id_string, scheduled_at, error,
			retry_enabled, retry_unit, retry_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT async_jobs_dedup_key DO UPDATE SET
			scheduled_at = EXCLUDED.scheduled_at,
			error = EXCLUDED.error,
			retry_enabled = EXCLUDED.retry_enabled,
			retry_unit = EXCLUDED.retry_unit,
			retry_size = EXCLUDED.retry_size,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		string(job.JobType),
		job.EntityID,
		job.EntityIDString,
		job.ScheduledAt,
		job.Error,
		job.RetryEnabled,
		string(job.RetryUnit),
		job.RetrySize,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to schedule job %s: %w", job.Key(), err)
	}
	return job.ID, nil
}

// Due returns jobs whose scheduled_at is at or before now.
func (r *PgJobRepository) Due(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}

	query := `SELECT ` + jobColumns + `
		FROM async_jobs
		WHERE scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}
	return jobs, nil
}

// Save persists the run state of a job.
func (r *PgJobRepository) Save(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE async_jobs SET
			scheduled_at = $2,
			error = $3,
			last_run_at = $4,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, job.ID, job.ScheduledAt, job.Error, job.LastRunAt)
	if err != nil {
		return fmt.Errorf("failed to save job %d: %w", job.ID, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("job", strconv.FormatInt(job.ID, 10))
	}
	return nil
}

// Get retrieves a job by ID.
func (r *PgJobRepository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM async_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("job", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List returns jobs matching the filter.
func (r *PgJobRepository) List(ctx context.Context, filter JobFilter) ([]*domain.Job, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	switch filter.State {
	case JobStatePending:
		conditions = append(conditions, "scheduled_at IS NOT NULL")
	case JobStateFailed:
		conditions = append(conditions, "error <> ''")
	}

	if filter.JobType != nil {
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", argIndex))
		args = append(args, string(*filter.JobType))
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM async_jobs %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM async_jobs
		%s
		ORDER BY updated_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, jobColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, totalCount, nil
}

func collectJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job       domain.Job
		jobType   string
		retryUnit string
	)
	err := row.Scan(
		&job.ID, &jobType, &job.EntityID, &job.EntityIDString, &job.ScheduledAt, &job.Error,
		&job.RetryEnabled, &retryUnit, &job.RetrySize, &job.LastRunAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.JobType = domain.JobType(jobType)
	job.RetryUnit = domain.RetryUnit(retryUnit)
	return &job, nil
}
