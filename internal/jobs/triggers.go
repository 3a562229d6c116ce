package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// triggerTimeout bounds one cron-triggered scheduling call.
const triggerTimeout = time.Minute

// TriggersConfig holds the cron expressions of the periodic triggers. An
// empty expression disables that trigger.
type TriggersConfig struct {
	RefreshAllCron  string
	MaintenanceCron string
}

// Triggers enqueues the root jobs on a cron schedule. Triggers only schedule
// jobs; the runner executes them.
type Triggers struct {
	cron     *cron.Cron
	factory  repository.StoreFactory
	enqueuer *queue.Enqueuer
	logger   zerolog.Logger
}

// NewTriggers parses cfg and registers the cron entries.
func NewTriggers(cfg TriggersConfig, factory repository.StoreFactory, enqueuer *queue.Enqueuer, logger zerolog.Logger) (*Triggers, error) {
	t := &Triggers{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		factory:  factory,
		enqueuer: enqueuer,
		logger:   logger.With().Str("component", "job_triggers").Logger(),
	}

	entries := []struct {
		name string
		spec string
		fn   func(context.Context, repository.StoreFactory, *queue.Enqueuer) error
	}{
		{"refresh_all", cfg.RefreshAllCron, ScheduleRefreshAll},
		{"maintenance", cfg.MaintenanceCron, ScheduleMaintenance},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		name, fn := e.name, e.fn
		if _, err := t.cron.AddFunc(e.spec, func() { t.fire(name, fn) }); err != nil {
			return nil, fmt.Errorf("register %s trigger %q: %w", name, e.spec, err)
		}
		t.logger.Info().Str("trigger", name).Str("schedule", e.spec).Msg("trigger registered")
	}
	return t, nil
}

func (t *Triggers) fire(name string, fn func(context.Context, repository.StoreFactory, *queue.Enqueuer) error) {
	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()

	if err := fn(ctx, t.factory, t.enqueuer); err != nil {
		t.logger.Error().Err(err).Str("trigger", name).Msg("trigger failed")
		return
	}
	t.logger.Info().Str("trigger", name).Msg("trigger fired")
}

// Start starts the cron scheduler in its own goroutine.
func (t *Triggers) Start() {
	t.cron.Start()
}

// Stop stops the scheduler and waits for a running trigger to finish or ctx
// to expire.
func (t *Triggers) Stop(ctx context.Context) {
	done := t.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	t.logger.Info().Msg("triggers stopped")
}

// Entries returns the number of registered triggers.
func (t *Triggers) Entries() int {
	return len(t.cron.Entries())
}
