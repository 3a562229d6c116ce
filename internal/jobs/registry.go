// Package jobs runs the durable async job queue.
//
// A Runner drains due jobs one at a time, each in its own repository.Store,
// and records the outcome on the job row. A Registry binds every job type to
// its Handler; Handlers provides the handlers of the catalog orchestration
// graph:
//
//	RefreshAll -> AcademicRefresh -> SourceRefresh -> SourceGetPublications
//	                              -> AcademicFindNewPotentialSources
//	                              -> AcademicEnsureSourcesArePotential
//
// Reconciliation schedules PublicationInitialise, CatalogPublicationRefresh
// and AffiliationRefresh for the rows it creates. Maintenance sweeps
// (PublicationRemoveUnused, AutoFillFolders) are scheduled by the cron
// triggers or by operators.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Handler executes one job inside store. Returning an error fails the job;
// the runner rolls back store and applies the job's retry policy.
type Handler func(ctx context.Context, store repository.Store, job *domain.Job) error

// Registry maps job types to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobType]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.JobType]Handler),
	}
}

// Register binds handler to jobType, replacing any previous binding.
func (r *Registry) Register(jobType domain.JobType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Lookup returns the handler for jobType.
func (r *Registry) Lookup(jobType domain.JobType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%q: %w", jobType, domain.ErrUnknownJobType)
	}
	return h, nil
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []domain.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
