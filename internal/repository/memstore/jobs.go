package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

type jobRepo struct{ s *Store }

func sameKey(a, b domain.Job) bool {
	if a.JobType != b.JobType {
		return false
	}
	if (a.EntityID == nil) != (b.EntityID == nil) || (a.EntityID != nil && *a.EntityID != *b.EntityID) {
		return false
	}
	if (a.EntityIDString == nil) != (b.EntityIDString == nil) ||
		(a.EntityIDString != nil && *a.EntityIDString != *b.EntityIDString) {
		return false
	}
	return true
}

func (r *jobRepo) Schedule(_ context.Context, job *domain.Job) (int64, error) {
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

	defer r.s.lock()()
	st := r.s.write()
	for id, existing := range st.jobs {
		if !sameKey(existing, *job) {
			continue
		}
		existing.ScheduledAt = job.ScheduledAt
		existing.Error = job.Error
		existing.RetryEnabled = job.RetryEnabled
		existing.RetryUnit = job.RetryUnit
		existing.RetrySize = job.RetrySize
		existing.UpdatedAt = now()
		st.jobs[id] = existing
		job.ID, job.CreatedAt, job.UpdatedAt = id, existing.CreatedAt, existing.UpdatedAt
		return id, nil
	}

	row := *job
	row.ID = r.s.db.allocID()
	row.CreatedAt, row.UpdatedAt = now(), now()
	st.jobs[row.ID] = row
	job.ID, job.CreatedAt, job.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return row.ID, nil
}

func (r *jobRepo) Due(_ context.Context, at time.Time, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	defer r.s.lock()()
	var due []*domain.Job
	for _, j := range r.s.read().jobs {
		if j.ScheduledAt != nil && !j.ScheduledAt.After(at) {
			j := j
			due = append(due, &j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].ScheduledAt.Equal(*due[k].ScheduledAt) {
			return due[i].ScheduledAt.Before(*due[k].ScheduledAt)
		}
		return due[i].ID < due[k].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *jobRepo) Save(_ context.Context, job *domain.Job) error {
	defer r.s.lock()()
	row, ok := r.s.read().jobs[job.ID]
	if !ok {
		return notFound("job", job.ID)
	}
	row.ScheduledAt, row.Error, row.LastRunAt = job.ScheduledAt, job.Error, job.LastRunAt
	row.UpdatedAt = now()
	r.s.write().jobs[job.ID] = row
	return nil
}

func (r *jobRepo) Get(_ context.Context, id int64) (*domain.Job, error) {
	defer r.s.lock()()
	j, ok := r.s.read().jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	return &j, nil
}

func (r *jobRepo) List(_ context.Context, filter repository.JobFilter) ([]*domain.Job, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	defer r.s.lock()()
	var matched []*domain.Job
	for _, j := range r.s.read().jobs {
		switch filter.State {
		case repository.JobStatePending:
			if j.ScheduledAt == nil {
				continue
			}
		case repository.JobStateFailed:
			if j.Error == "" {
				continue
			}
		}
		if filter.JobType != nil && j.JobType != *filter.JobType {
			continue
		}
		j := j
		matched = append(matched, &j)
	}
	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].UpdatedAt.Equal(matched[k].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[k].UpdatedAt)
		}
		return matched[i].ID > matched[k].ID
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []*domain.Job{}, total, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Insert(_ context.Context, event *domain.OutboxEvent) error {
	if event.EventID == uuid.Nil {
		event.EventID = newEventID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now()
	}

	defer r.s.lock()()
	st := r.s.write()
	st.outbox = append(st.outbox, *event)
	return nil
}

func (r *outboxRepo) FetchPending(_ context.Context, limit, maxAttempts int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	defer r.s.lock()()
	var out []*domain.OutboxEvent
	for _, e := range r.s.read().outbox {
		if e.PublishedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		e := e
		out = append(out, &e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	st := r.s.write()
	for i := range st.outbox {
		if want[st.outbox[i].EventID] {
			published := at
			st.outbox[i].PublishedAt = &published
			st.outbox[i].Attempts++
		}
	}
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	defer r.s.lock()()
	st := r.s.write()
	for i := range st.outbox {
		if st.outbox[i].EventID == id {
			st.outbox[i].Attempts++
			st.outbox[i].LastError = message
		}
	}
	return nil
}
