package jobs

import (
	"context"
	"fmt"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// ScheduleRefreshAll enqueues the RefreshAll root job, due now.
func ScheduleRefreshAll(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer) error {
	return scheduleGlobal(ctx, factory, enqueuer, domain.JobTypeRefreshAll)
}

// ScheduleMaintenance enqueues the periodic sweeps: unused publication
// removal and folder autofill.
func ScheduleMaintenance(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer) error {
	return scheduleGlobal(ctx, factory, enqueuer,
		domain.JobTypePublicationRemoveUnused,
		domain.JobTypeAutoFillFolders,
	)
}

// ScheduleEntity enqueues one job for an integer entity, due now.
func ScheduleEntity(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer, jobType domain.JobType, entityID int64) (*domain.Job, error) {
	job := domain.NewEntityJob(jobType, entityID, enqueuer.Now())
	if err := scheduleJobs(ctx, factory, enqueuer, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ScheduleJob enqueues job in its own store. A job without ScheduledAt is due now.
func ScheduleJob(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer, job *domain.Job) error {
	return scheduleJobs(ctx, factory, enqueuer, job)
}

// scheduleGlobal enqueues entity-less jobs of the given types.
func scheduleGlobal(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer, types ...domain.JobType) error {
	now := enqueuer.Now()
	jobs := make([]*domain.Job, 0, len(types))
	for _, t := range types {
		jobs = append(jobs, domain.NewJob(t, nil, nil, now))
	}
	return scheduleJobs(ctx, factory, enqueuer, jobs...)
}

// scheduleJobs enqueues jobs in their own store and commits.
func scheduleJobs(ctx context.Context, factory repository.StoreFactory, enqueuer *queue.Enqueuer, jobs ...*domain.Job) error {
	store, err := factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin store: %w", err)
	}
	defer store.Close(ctx)

	if err := enqueuer.Enqueue(ctx, store, jobs...); err != nil {
		return err
	}
	if err := store.Commit(ctx); err != nil {
		return fmt.Errorf("commit scheduled jobs: %w", err)
	}
	return nil
}
