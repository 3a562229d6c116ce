package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Config holds the reconciliation rules.
type Config struct {
	// HistoricCutoff flags publications dated before it. Zero disables the flag.
	HistoricCutoff time.Time

	// NIHRSponsors lists sponsor names flagged as NIHR on creation.
	NIHRSponsors []string
}

// Result summarises one reconciliation pass.
type Result struct {
	Xrefs *Xrefs

	// Merged holds the merged records in DTO order.
	Merged []*domain.CatalogPublication

	// CreatedRecords counts catalog publications created by the pass.
	CreatedRecords int

	// Skipped counts DTOs left out for lacking a valid identity.
	Skipped int
}

// Reconciler resolves and merges DTO batches.
type Reconciler struct {
	resolver *Resolver
	writer   *Writer
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewReconciler creates a Reconciler. metrics may be nil.
func NewReconciler(cfg Config, enqueuer *queue.Enqueuer, metrics *observability.Metrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		resolver: NewResolver(cfg.NIHRSponsors, enqueuer, metrics, logger),
		writer:   NewWriter(cfg.HistoricCutoff, enqueuer, logger),
		metrics:  metrics,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Resolver returns the reconciler's identity resolver.
func (r *Reconciler) Resolver() *Resolver {
	return r.resolver
}

// Reconcile resolves dtos, merges each one, records outbox events and
// commits. A merge failure aborts the pass; rows committed by the resolve
// stage are kept.
func (r *Reconciler) Reconcile(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (*Result, error) {
	xrefs, err := r.resolver.Resolve(ctx, store, dtos)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	result := &Result{Xrefs: xrefs}
	firstDTO := make(map[int64]*domain.PublicationData)
	seen := make(map[domain.CatalogReference]struct{}, len(dtos))

	for _, dto := range dtos {
		if dto == nil {
			result.Skipped++
			continue
		}
		ref := dto.Reference()
		if _, ok := xrefs.Publications[ref]; !ok {
			result.Skipped++
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}

		cp, created, err := r.writer.merge(ctx, store, dto, xrefs)
		if err != nil {
			return nil, err
		}
		result.Merged = append(result.Merged, cp)
		if created {
			result.CreatedRecords++
		}
		if _, ok := firstDTO[cp.PublicationID]; !ok {
			firstDTO[cp.PublicationID] = dto
		}
		if r.metrics != nil {
			r.metrics.RecordDTOMerged(ref.Catalog)
		}

		event, err := domain.NewOutboxEvent(
			domain.EventTypeCatalogPublicationSynced,
			strconv.FormatInt(cp.ID, 10),
			domain.AggregateTypeCatalogPublication,
			domain.CatalogPublicationSyncedPayload{
				CatalogPublicationID: cp.ID,
				PublicationID:        cp.PublicationID,
				Catalog:              cp.Catalog,
				CatalogIdentifier:    cp.CatalogIdentifier,
				Created:              created,
				AuthorCount:          len(dto.Authors),
			},
		)
		if err != nil {
			return nil, fmt.Errorf("build synced event: %w", err)
		}
		if err := store.Outbox().Insert(ctx, event); err != nil {
			return nil, fmt.Errorf("record synced event: %w", err)
		}
	}

	for _, publicationID := range xrefs.NewPublications {
		dto, ok := firstDTO[publicationID]
		if !ok {
			continue
		}
		event, err := domain.NewOutboxEvent(
			domain.EventTypePublicationCreated,
			strconv.FormatInt(publicationID, 10),
			domain.AggregateTypePublication,
			domain.PublicationCreatedPayload{
				PublicationID:     publicationID,
				DOI:               dto.NormalizedDOI(),
				Catalog:           dto.Reference().Catalog,
				CatalogIdentifier: dto.Reference().Identifier,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("build created event: %w", err)
		}
		if err := store.Outbox().Insert(ctx, event); err != nil {
			return nil, fmt.Errorf("record created event: %w", err)
		}
	}

	if err := store.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reconciliation: %w", err)
	}

	logger := observability.FromContext(ctx, r.logger)
	logger.Info().
		Int("dtos", len(dtos)).
		Int("merged", len(result.Merged)).
		Int("created_records", result.CreatedRecords).
		Int("new_publications", len(xrefs.NewPublications)).
		Int("skipped", result.Skipped).
		Msg("reconciliation complete")

	return result, nil
}
