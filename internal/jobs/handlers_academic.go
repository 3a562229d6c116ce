package jobs

import (
	"context"
	"fmt"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// RefreshAll schedules an AcademicRefresh for every tracked academic.
func (h *Handlers) RefreshAll(ctx context.Context, store repository.Store, job *domain.Job) error {
	ids, err := store.Academics().ListTrackedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tracked academics: %w", err)
	}

	now := h.now()
	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, domain.NewEntityJob(domain.JobTypeAcademicRefresh, id, now))
	}
	if err := h.enqueuer.Enqueue(ctx, store, jobs...); err != nil {
		return err
	}

	logger := h.jobLogger(job)
	logger.Info().Int("academics", len(ids)).Msg("academic refreshes scheduled")
	return nil
}

// AcademicRefresh schedules source discovery and status checks for one
// academic, plus a refresh and publication fetch for each of its sources.
// Sources rejected as not matched are left alone.
func (h *Handlers) AcademicRefresh(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	academicID, err := entityID(job)
	if err != nil {
		return err
	}

	if _, err := store.Academics().Get(ctx, academicID); err != nil {
		if missing(logger, err, "academic") {
			return nil
		}
		return fmt.Errorf("load academic: %w", err)
	}

	sources, err := store.Sources().ListByAcademic(ctx, academicID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	now := h.now()
	jobs := []*domain.Job{
		domain.NewEntityJob(domain.JobTypeAcademicFindNewPotentialSources, academicID, now),
		domain.NewEntityJob(domain.JobTypeAcademicEnsureSourcesArePotential, academicID, now),
	}
	refreshed := 0
	for _, src := range sources {
		if src.Status == domain.SourceStatusNotMatched {
			continue
		}
		jobs = append(jobs,
			domain.NewEntityJob(domain.JobTypeSourceRefresh, src.ID, now),
			domain.NewEntityJob(domain.JobTypeSourceGetPublications, src.ID, now),
		)
		refreshed++
	}
	if err := h.enqueuer.Enqueue(ctx, store, jobs...); err != nil {
		return err
	}

	logger.Info().Int("sources", refreshed).Msg("academic refresh scheduled")
	return nil
}

// AcademicFindNewPotentialSources searches every enabled catalog for author
// profiles matching the academic's ORCID, or failing that their display
// name. Matching profiles become Sources, and those not yet owned by any
// academic are claimed as potential sources of this one.
func (h *Handlers) AcademicFindNewPotentialSources(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	academicID, err := entityID(job)
	if err != nil {
		return err
	}

	academic, err := store.Academics().Get(ctx, academicID)
	if err != nil {
		if missing(logger, err, "academic") {
			return nil
		}
		return fmt.Errorf("load academic: %w", err)
	}

	query := catalog.NormalizeORCID(academic.ORCID)
	if query == "" {
		query = academic.DisplayName
	}
	if query == "" {
		logger.Warn().Msg("academic has neither ORCID nor display name; nothing to search")
		return nil
	}

	var authors []*domain.AuthorData
	for _, adapter := range h.catalogs.Enabled() {
		found, err := adapter.SearchSimilarAuthors(ctx, query)
		if err != nil {
			if missing(logger, err, adapter.Catalog()+" author search") {
				continue
			}
			return fmt.Errorf("search %s authors: %w", adapter.Catalog(), err)
		}
		authors = append(authors, found...)
	}
	if len(authors) == 0 {
		logger.Debug().Str("query", query).Msg("no similar authors found")
		return nil
	}

	sourceIDs, err := h.reconciler.Resolver().ResolveSources(ctx, store, authors)
	if err != nil {
		return fmt.Errorf("resolve sources: %w", err)
	}
	ids := make([]int64, 0, len(sourceIDs))
	seen := make(map[int64]struct{}, len(sourceIDs))
	for _, a := range authors {
		if a == nil {
			continue
		}
		id, ok := sourceIDs[a.Reference()]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	claimed, err := store.Sources().ClaimPotential(ctx, ids, academicID)
	if err != nil {
		return fmt.Errorf("claim potential sources: %w", err)
	}

	logger.Info().
		Int("candidates", len(ids)).
		Int64("claimed", claimed).
		Msg("potential sources found")
	return nil
}

// AcademicEnsureSourcesArePotential gives every status-less source of the
// academic the potential status, and marks sources carrying the academic's
// ORCID as matched.
func (h *Handlers) AcademicEnsureSourcesArePotential(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	academicID, err := entityID(job)
	if err != nil {
		return err
	}

	academic, err := store.Academics().Get(ctx, academicID)
	if err != nil {
		if missing(logger, err, "academic") {
			return nil
		}
		return fmt.Errorf("load academic: %w", err)
	}

	sources, err := store.Sources().ListByAcademic(ctx, academicID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	potential := 0
	for _, src := range sources {
		if src.Status != domain.SourceStatusNone {
			continue
		}
		if err := store.Sources().SetStatus(ctx, src.ID, &academicID, domain.SourceStatusPotential); err != nil {
			return fmt.Errorf("mark source %d potential: %w", src.ID, err)
		}
		potential++
	}

	matched := 0
	if orcid := catalog.NormalizeORCID(academic.ORCID); orcid != "" {
		byORCID, err := store.Sources().ListByORCID(ctx, orcid)
		if err != nil {
			return fmt.Errorf("list sources by orcid: %w", err)
		}
		for _, src := range byORCID {
			if src.AcademicID != nil && *src.AcademicID != academicID {
				continue
			}
			if src.Status == domain.SourceStatusMatched || src.Status == domain.SourceStatusNotMatched {
				continue
			}
			if err := store.Sources().SetStatus(ctx, src.ID, &academicID, domain.SourceStatusMatched); err != nil {
				return fmt.Errorf("mark source %d matched: %w", src.ID, err)
			}
			matched++
		}
	}

	logger.Info().Int("potential", potential).Int("matched", matched).Msg("source statuses ensured")
	return nil
}
