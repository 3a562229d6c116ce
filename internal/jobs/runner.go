package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

const defaultBatchLimit = 100

// ErrDrainInProgress is returned by RunDue while another drain holds the
// runner or the shared drain lock.
var ErrDrainInProgress = errors.New("drain already in progress")

// DrainLocker excludes concurrent drains across processes. release must be
// called exactly once after a successful TryLock.
type DrainLocker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// RunSummary counts the outcomes of one drain.
type RunSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Rescheduled counts failed jobs that will be retried.
	Rescheduled int `json:"rescheduled"`
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// BatchLimit caps the number of due jobs fetched per query.
	BatchLimit int
}

// Runner drains due jobs sequentially.
type Runner struct {
	factory  repository.StoreFactory
	registry *Registry
	cfg      RunnerConfig
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	draining sync.Mutex
	locker   DrainLocker
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(factory repository.StoreFactory, registry *Registry, cfg RunnerConfig, metrics *observability.Metrics, logger zerolog.Logger) *Runner {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	return &Runner{
		factory:  factory,
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With().Str("component", "job_runner").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the runner's clock.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// SetDrainLock makes every drain also hold locker, so that a worker and an
// API process never drain at the same time.
func (r *Runner) SetDrainLock(locker DrainLocker) {
	r.locker = locker
}

// RunDue runs every job due now, including jobs that become due while the
// drain is in progress. Each job runs at most once per drain. Job failures
// are recorded on the job row and never stop the drain; the returned error
// reports only ErrDrainInProgress, a failure to read the queue or a
// cancelled context.
func (r *Runner) RunDue(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	if !r.draining.TryLock() {
		return summary, ErrDrainInProgress
	}
	defer r.draining.Unlock()

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx)
		if err != nil {
			return summary, fmt.Errorf("acquire drain lock: %w", err)
		}
		if !ok {
			return summary, ErrDrainInProgress
		}
		defer release()
	}

	seen := make(map[int64]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		due, err := r.fetchDue(ctx)
		if err != nil {
			return summary, err
		}

		ran := 0
		for _, job := range due {
			if _, ok := seen[job.ID]; ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			seen[job.ID] = struct{}{}
			ran++

			ok, rescheduled, err := r.RunJob(ctx, job)
			if err != nil {
				return summary, err
			}
			summary.Total++
			switch {
			case ok:
				summary.Succeeded++
			case rescheduled:
				summary.Failed++
				summary.Rescheduled++
			default:
				summary.Failed++
			}
		}
		if ran == 0 {
			break
		}
	}

	if r.metrics != nil {
		r.metrics.RecordDrainCompleted()
	}
	if summary.Total > 0 {
		r.logger.Info().
			Int("total", summary.Total).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("rescheduled", summary.Rescheduled).
			Msg("drain completed")
	}
	return summary, nil
}

func (r *Runner) fetchDue(ctx context.Context) ([]*domain.Job, error) {
	store, err := r.factory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin store: %w", err)
	}
	defer store.Close(ctx)

	due, err := store.Jobs().Due(ctx, r.now(), r.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch due jobs: %w", err)
	}
	if err := store.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit due query: %w", err)
	}
	return due, nil
}

// RunJob executes one job in a fresh store and persists its outcome. It
// reports whether the handler succeeded and, if not, whether the job was
// rescheduled. The error is non-nil only when the outcome itself could not be
// saved.
func (r *Runner) RunJob(ctx context.Context, job *domain.Job) (succeeded, rescheduled bool, err error) {
	logger := observability.WithEntityContext(
		observability.WithJobContext(r.logger, job.JobType.String(), job.ID),
		job.EntityID, job.EntityIDString,
	)
	ctx = observability.WithJob(ctx, job.JobType.String(), job.ID)

	store, err := r.factory.Begin(ctx)
	if err != nil {
		return false, false, fmt.Errorf("begin store for job %d: %w", job.ID, err)
	}
	defer store.Close(ctx)

	start := time.Now()
	outcome := observability.OutcomeSucceeded
	runErr := r.invoke(ctx, store, job)
	elapsed := time.Since(start)
	now := r.now()

	if runErr == nil {
		job.MarkSucceeded(now)
		logger.Debug().Dur("duration", elapsed).Msg("job succeeded")
	} else {
		if err := store.Rollback(ctx); err != nil {
			logger.Error().Err(err).Msg("rollback after job failure")
		}
		job.MarkFailed(runErr, now)

		outcome = observability.OutcomeFailed
		if errors.Is(runErr, domain.ErrUnknownJobType) {
			outcome = observability.OutcomeUnknown
		}
		event := logger.Error()
		if job.ScheduledAt != nil {
			if transient(runErr) {
				event = logger.Warn()
			}
			event = event.Time("retry_at", *job.ScheduledAt)
		}
		event = event.Err(runErr).Dur("duration", elapsed)
		event.Msg("job failed")
	}

	if err := store.Jobs().Save(ctx, job); err != nil {
		return false, false, fmt.Errorf("save job %d: %w", job.ID, err)
	}
	if err := store.Commit(ctx); err != nil {
		return false, false, fmt.Errorf("commit job %d: %w", job.ID, err)
	}

	rescheduled = runErr != nil && job.ScheduledAt != nil
	if r.metrics != nil {
		r.metrics.RecordJobRun(job.JobType.String(), outcome, elapsed.Seconds())
		if rescheduled {
			r.metrics.RecordJobRescheduled(job.JobType.String())
		}
	}
	return runErr == nil, rescheduled, nil
}

// transient reports failures a later retry is expected to clear.
func transient(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	var apiErr *domain.CatalogAPIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// invoke calls the job's handler, turning a panic into an error.
func (r *Runner) invoke(ctx context.Context, store repository.Store, job *domain.Job) (err error) {
	handler, err := r.registry.Lookup(job.JobType)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("job_type", job.JobType.String()).
				Int64("job_id", job.ID).
				Bytes("stack", debug.Stack()).
				Msg("job handler panicked")
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return handler(ctx, store, job)
}
