package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/reconcile"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Retry policy of PublicationGetMissingScopus.
const (
	missingScopusRetryUnit = domain.RetryUnitDays
	missingScopusRetrySize = 7
)

// HandlersConfig configures the orchestration handlers.
type HandlersConfig struct {
	// AutofillWindow is how far back AutoFillFolders looks for publications.
	AutofillWindow time.Duration
}

// Handlers implements the job types of the catalog orchestration graph.
type Handlers struct {
	catalogs   *catalog.Registry
	reconciler *reconcile.Reconciler
	enqueuer   *queue.Enqueuer
	cfg        HandlersConfig
	logger     zerolog.Logger
}

// NewHandlers creates the orchestration handlers.
func NewHandlers(
	catalogs *catalog.Registry,
	reconciler *reconcile.Reconciler,
	enqueuer *queue.Enqueuer,
	cfg HandlersConfig,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		catalogs:   catalogs,
		reconciler: reconciler,
		enqueuer:   enqueuer,
		cfg:        cfg,
		logger:     logger.With().Str("component", "job_handlers").Logger(),
	}
}

// Register binds every job type to its handler.
func (h *Handlers) Register(r *Registry) {
	r.Register(domain.JobTypeRefreshAll, h.RefreshAll)
	r.Register(domain.JobTypeAcademicRefresh, h.AcademicRefresh)
	r.Register(domain.JobTypeAcademicFindNewPotentialSources, h.AcademicFindNewPotentialSources)
	r.Register(domain.JobTypeAcademicEnsureSourcesArePotential, h.AcademicEnsureSourcesArePotential)
	r.Register(domain.JobTypeSourceRefresh, h.SourceRefresh)
	r.Register(domain.JobTypeSourceGetPublications, h.SourceGetPublications)
	r.Register(domain.JobTypeCatalogPublicationRefresh, h.CatalogPublicationRefresh)
	r.Register(domain.JobTypePublicationInitialise, h.PublicationInitialise)
	r.Register(domain.JobTypePublicationGetMissingScopus, h.PublicationGetMissingScopus)
	r.Register(domain.JobTypePublicationGetScivalInstitutions, h.PublicationGetScivalInstitutions)
	r.Register(domain.JobTypeAffiliationRefresh, h.AffiliationRefresh)
	r.Register(domain.JobTypeInstitutionRefresh, h.InstitutionRefresh)
	r.Register(domain.JobTypePublicationRemoveUnused, h.PublicationRemoveUnused)
	r.Register(domain.JobTypeAutoFillFolders, h.AutoFillFolders)
}

// NewDefaultRegistry returns a registry with every handler registered.
func (h *Handlers) NewDefaultRegistry() *Registry {
	r := NewRegistry()
	h.Register(r)
	return r
}

// jobLogger returns the handler logger annotated with the running job.
func (h *Handlers) jobLogger(job *domain.Job) zerolog.Logger {
	return observability.WithEntityContext(
		observability.WithJobContext(h.logger, job.JobType.String(), job.ID),
		job.EntityID, job.EntityIDString,
	)
}

// entityID returns the integer entity of job.
func entityID(job *domain.Job) (int64, error) {
	if job.EntityID == nil {
		return 0, domain.NewValidationError("entity_id", fmt.Sprintf("%s job has no entity id", job.JobType))
	}
	return *job.EntityID, nil
}

// adapter returns the enabled adapter for catalogName.
func (h *Handlers) adapter(catalogName string) (catalog.Adapter, bool) {
	a := h.catalogs.Get(catalogName)
	if a == nil || !a.IsEnabled() {
		return nil, false
	}
	return a, true
}

// missing reports whether err means the entity no longer exists, logging it
// as a completed job.
func missing(logger zerolog.Logger, err error, what string) bool {
	if !errors.Is(err, domain.ErrNotFound) {
		return false
	}
	logger.Warn().Err(err).Msgf("%s not found; completing job", what)
	return true
}

func (h *Handlers) now() time.Time {
	return h.enqueuer.Now()
}

// reconcileBatch runs a reconciliation pass over dtos in store.
func (h *Handlers) reconcileBatch(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (*reconcile.Result, error) {
	if len(dtos) == 0 {
		return &reconcile.Result{Xrefs: reconcile.NewXrefs()}, nil
	}
	result, err := h.reconciler.Reconcile(ctx, store, dtos)
	if err != nil {
		return nil, fmt.Errorf("reconcile %d publications: %w", len(dtos), err)
	}
	return result, nil
}
