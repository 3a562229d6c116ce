package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// SourceRefresh refetches a source's author profile. When the catalog no
// longer knows the author the source is marked errored and nothing else is
// scheduled. Otherwise the profile and affiliations are updated and the
// source's publications are fetched next.
func (h *Handlers) SourceRefresh(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	sourceID, err := entityID(job)
	if err != nil {
		return err
	}

	src, err := store.Sources().Get(ctx, sourceID)
	if err != nil {
		if missing(logger, err, "source") {
			return nil
		}
		return fmt.Errorf("load source: %w", err)
	}

	adapter, ok := h.adapter(src.Catalog)
	if !ok {
		logger.Warn().Str("catalog", src.Catalog).Msg("catalog not enabled; skipping source refresh")
		return nil
	}

	author, err := adapter.FetchAuthor(ctx, src.CatalogIdentifier)
	if errors.Is(err, domain.ErrNotFound) {
		return h.markSourceErrored(ctx, store, src, err)
	}
	if err != nil {
		return fmt.Errorf("fetch %s author %s: %w", src.Catalog, src.CatalogIdentifier, err)
	}

	now := h.now()
	src.ApplyAuthor(author)
	src.Error = false
	src.ErrorMessage = ""
	src.LastFetchedAt = &now
	if err := store.Sources().Update(ctx, src); err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	affiliationIDs, err := h.reconciler.Resolver().ResolveAffiliations(ctx, store, []*domain.AuthorData{author})
	if err != nil {
		return fmt.Errorf("resolve affiliations: %w", err)
	}
	var ids []int64
	for _, af := range author.Affiliations {
		if af == nil {
			continue
		}
		if id, ok := affiliationIDs[af.Reference()]; ok {
			ids = append(ids, id)
		}
	}
	if err := store.Sources().ReplaceAffiliations(ctx, src.ID, ids); err != nil {
		return fmt.Errorf("replace source affiliations: %w", err)
	}

	if err := h.enqueuer.Entity(ctx, store, domain.JobTypeSourceGetPublications, src.ID); err != nil {
		return err
	}

	logger.Info().Int("affiliations", len(ids)).Msg("source refreshed")
	return nil
}

func (h *Handlers) markSourceErrored(ctx context.Context, store repository.Store, src *domain.Source, cause error) error {
	if err := store.Sources().MarkError(ctx, src.ID, cause.Error(), h.now()); err != nil {
		return fmt.Errorf("mark source errored: %w", err)
	}

	event, err := domain.NewOutboxEvent(
		domain.EventTypeSourceErrored,
		strconv.FormatInt(src.ID, 10),
		domain.AggregateTypeSource,
		domain.SourceErroredPayload{
			SourceID:          src.ID,
			Catalog:           src.Catalog,
			CatalogIdentifier: src.CatalogIdentifier,
			Message:           cause.Error(),
		},
	)
	if err != nil {
		return fmt.Errorf("build source errored event: %w", err)
	}
	if err := store.Outbox().Insert(ctx, event); err != nil {
		return fmt.Errorf("record source errored event: %w", err)
	}

	h.logger.Warn().
		Int64("source_id", src.ID).
		Str("catalog", src.Catalog).
		Str("catalog_identifier", src.CatalogIdentifier).
		Msg("source no longer resolves; marked errored")
	return nil
}

// SourceGetPublications fetches a source's publication list and reconciles
// the publications not yet stored for its catalog.
func (h *Handlers) SourceGetPublications(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	sourceID, err := entityID(job)
	if err != nil {
		return err
	}

	src, err := store.Sources().Get(ctx, sourceID)
	if err != nil {
		if missing(logger, err, "source") {
			return nil
		}
		return fmt.Errorf("load source: %w", err)
	}
	if src.Error {
		logger.Debug().Msg("source is errored; skipping publication fetch")
		return nil
	}

	adapter, ok := h.adapter(src.Catalog)
	if !ok {
		logger.Warn().Str("catalog", src.Catalog).Msg("catalog not enabled; skipping publication fetch")
		return nil
	}

	pubs, err := adapter.FetchAuthorPublications(ctx, src.CatalogIdentifier)
	if err != nil {
		if missing(logger, err, "author publications") {
			return nil
		}
		return fmt.Errorf("fetch %s publications of %s: %w", src.Catalog, src.CatalogIdentifier, err)
	}

	fresh, err := unknownPublications(ctx, store, pubs)
	if err != nil {
		return err
	}
	result, err := h.reconcileBatch(ctx, store, fresh)
	if err != nil {
		return err
	}

	logger.Info().
		Int("fetched", len(pubs)).
		Int("new", len(fresh)).
		Int("merged", len(result.Merged)).
		Msg("source publications fetched")
	return nil
}

// unknownPublications drops the DTOs whose catalog record already exists.
func unknownPublications(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) ([]*domain.PublicationData, error) {
	refs := make([]domain.CatalogReference, 0, len(dtos))
	for _, dto := range dtos {
		if dto != nil {
			refs = append(refs, dto.Reference())
		}
	}

	known := make(map[domain.CatalogReference]struct{})
	for catalogName, identifiers := range domain.GroupByCatalog(refs) {
		found, err := store.CatalogPublications().FindPublicationIDs(ctx, catalogName, identifiers)
		if err != nil {
			return nil, fmt.Errorf("find known %s publications: %w", catalogName, err)
		}
		for identifier := range found {
			known[domain.NewCatalogReference(catalogName, identifier)] = struct{}{}
		}
	}

	out := make([]*domain.PublicationData, 0, len(dtos))
	for _, dto := range dtos {
		if dto == nil {
			continue
		}
		if _, ok := known[dto.Reference()]; ok {
			continue
		}
		out = append(out, dto)
	}
	return out, nil
}
