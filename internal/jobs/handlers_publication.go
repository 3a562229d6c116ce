package jobs

import (
	"context"
	"fmt"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// institutionCatalogs lists the catalogs asked for institution enrichment,
// in order of preference.
var institutionCatalogs = []string{domain.CatalogScopus, domain.CatalogOpenAlex}

// CatalogPublicationRefresh refetches one catalog record and reconciles it.
func (h *Handlers) CatalogPublicationRefresh(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	cp, err := store.CatalogPublications().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "catalog publication") {
			return nil
		}
		return fmt.Errorf("load catalog publication: %w", err)
	}

	adapter, ok := h.adapter(cp.Catalog)
	if !ok {
		logger.Warn().Str("catalog", cp.Catalog).Msg("catalog not enabled; skipping refresh")
		return nil
	}

	dto, err := adapter.FetchPublication(ctx, cp.CatalogIdentifier)
	if err != nil {
		if missing(logger, err, "catalog publication upstream") {
			return nil
		}
		return fmt.Errorf("fetch %s publication %s: %w", cp.Catalog, cp.CatalogIdentifier, err)
	}

	if _, err := h.reconcileBatch(ctx, store, []*domain.PublicationData{dto}); err != nil {
		return err
	}
	if err := store.CatalogPublications().MarkRefreshed(ctx, cp.ID, h.now()); err != nil {
		return fmt.Errorf("mark refreshed: %w", err)
	}

	logger.Info().Str("catalog", cp.Catalog).Str("catalog_identifier", cp.CatalogIdentifier).Msg("catalog publication refreshed")
	return nil
}

// PublicationInitialise derives the display fields of a new publication from
// its preferred catalog record. Publications without a Scopus record are
// scheduled for a Scopus lookup by DOI and for institution enrichment.
func (h *Handlers) PublicationInitialise(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	pub, err := store.Publications().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "publication") {
			return nil
		}
		return fmt.Errorf("load publication: %w", err)
	}

	records, err := store.CatalogPublications().ListByPublication(ctx, pub.ID)
	if err != nil {
		return fmt.Errorf("list catalog publications: %w", err)
	}

	now := h.now()
	pub.Status = domain.PublicationStatusUnknown
	if cp := preferredRecord(records); cp != nil {
		if err := h.deriveFields(ctx, store, pub, cp); err != nil {
			return err
		}
	}
	pub.InitialisedAt = &now
	if err := store.Publications().UpdateDerived(ctx, pub); err != nil {
		return fmt.Errorf("update derived fields: %w", err)
	}

	hasScopus := false
	for _, cp := range records {
		if cp.Catalog == domain.CatalogScopus {
			hasScopus = true
			break
		}
	}
	if !hasScopus && pub.DOI != nil {
		missingScopus := domain.NewEntityJob(domain.JobTypePublicationGetMissingScopus, pub.ID, now).
			WithRetry(missingScopusRetryUnit, missingScopusRetrySize)
		institutions := domain.NewEntityJob(domain.JobTypePublicationGetScivalInstitutions, pub.ID, now)
		if err := h.enqueuer.Enqueue(ctx, store, missingScopus, institutions); err != nil {
			return err
		}
	}

	logger.Info().
		Str("status", string(pub.Status)).
		Bool("preprint", pub.IsPreprint).
		Bool("has_scopus", hasScopus).
		Msg("publication initialised")
	return nil
}

// preferredRecord returns the Scopus record if any, else the oldest record.
func preferredRecord(records []*domain.CatalogPublication) *domain.CatalogPublication {
	for _, cp := range records {
		if cp.Catalog == domain.CatalogScopus {
			return cp
		}
	}
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

func (h *Handlers) deriveFields(ctx context.Context, store repository.Store, pub *domain.Publication, cp *domain.CatalogPublication) error {
	authors, err := store.CatalogPublications().ListAuthorNames(ctx, cp.ID)
	if err != nil {
		return fmt.Errorf("list author names: %w", err)
	}

	var journal string
	if cp.JournalID != nil {
		j, err := store.Journals().Get(ctx, *cp.JournalID)
		if err != nil {
			return fmt.Errorf("load journal: %w", err)
		}
		journal = j.Name
	}

	var subtypeCode, subtypeDescription string
	if cp.SubtypeID != nil {
		s, err := store.Subtypes().Get(ctx, *cp.SubtypeID)
		if err != nil {
			return fmt.Errorf("load subtype: %w", err)
		}
		subtypeCode, subtypeDescription = s.Code, s.Description
	}

	doi := cp.DOI
	if doi == "" && pub.DOI != nil {
		doi = *pub.DOI
	}
	year := 0
	if cp.PeriodStart != nil {
		year = cp.PeriodStart.Year()
	}

	pub.Reference = domain.FormatReference(domain.CitationInput{
		Authors: authors,
		Year:    year,
		Title:   cp.Title,
		Journal: journal,
		Volume:  cp.Volume,
		Issue:   cp.Issue,
		Pages:   cp.Pages,
		DOI:     doi,
	})
	pub.IsPreprint = domain.GuessPreprint(journal, doi)
	pub.Status = domain.GuessStatus(subtypeCode, subtypeDescription, cp.Volume, cp.Pages, cp.PeriodStart, h.now())
	return nil
}

// PublicationGetMissingScopus looks a publication up in Scopus by DOI and
// reconciles the record found.
func (h *Handlers) PublicationGetMissingScopus(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	pub, err := store.Publications().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "publication") {
			return nil
		}
		return fmt.Errorf("load publication: %w", err)
	}
	if pub.DOI == nil {
		logger.Debug().Msg("publication has no DOI; nothing to look up")
		return nil
	}

	exists, err := store.CatalogPublications().ExistsForPublication(ctx, pub.ID, domain.CatalogScopus)
	if err != nil {
		return fmt.Errorf("check scopus record: %w", err)
	}
	if exists {
		return nil
	}

	adapter, ok := h.adapter(domain.CatalogScopus)
	if !ok {
		logger.Warn().Msg("scopus not enabled; skipping lookup")
		return nil
	}

	dto, err := adapter.FetchPublication(ctx, *pub.DOI)
	if err != nil {
		if missing(logger, err, "scopus publication") {
			return nil
		}
		return fmt.Errorf("fetch scopus publication %s: %w", *pub.DOI, err)
	}

	if _, err := h.reconcileBatch(ctx, store, []*domain.PublicationData{dto}); err != nil {
		return err
	}

	logger.Info().Str("doi", *pub.DOI).Msg("missing scopus record fetched")
	return nil
}

// PublicationGetScivalInstitutions links a publication to the institutions
// of its authors. New institutions are scheduled for a refresh.
func (h *Handlers) PublicationGetScivalInstitutions(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	pub, err := store.Publications().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "publication") {
			return nil
		}
		return fmt.Errorf("load publication: %w", err)
	}
	if pub.DOI == nil {
		logger.Debug().Msg("publication has no DOI; nothing to enrich")
		return nil
	}

	enricher, catalogName := h.institutionEnricher()
	if enricher == nil {
		logger.Warn().Msg("no institution enricher enabled; skipping")
		return nil
	}

	found, err := enricher.FetchPublicationInstitutions(ctx, *pub.DOI)
	if err != nil {
		if missing(logger, err, "publication institutions") {
			return nil
		}
		return fmt.Errorf("fetch %s institutions for %s: %w", catalogName, *pub.DOI, err)
	}

	var institutions []*domain.Institution
	var raws [][]byte
	seen := make(map[domain.CatalogReference]struct{})
	for _, inst := range found {
		if inst == nil {
			continue
		}
		ref := inst.Reference()
		if ref.IsZero() {
			logger.Warn().Str("name", inst.Name).Msg("skipping institution without identifier")
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		institutions = append(institutions, &domain.Institution{
			Catalog:           ref.Catalog,
			CatalogIdentifier: ref.Identifier,
			Name:              inst.Name,
			Sector:            inst.Sector,
			CountryCode:       inst.CountryCode,
		})
		raws = append(raws, inst.Raw)
	}
	if len(institutions) == 0 {
		return nil
	}

	results, err := store.Institutions().BulkGetOrCreate(ctx, institutions)
	if err != nil {
		return fmt.Errorf("create institutions: %w", err)
	}

	ids := make([]int64, 0, len(results))
	var refreshes []*domain.Job
	now := h.now()
	for i, res := range results {
		ids = append(ids, res.ID)
		if !res.Inserted {
			continue
		}
		if err := store.RawData().Insert(ctx, &domain.RawData{
			Catalog:           institutions[i].Catalog,
			CatalogIdentifier: institutions[i].CatalogIdentifier,
			Action:            domain.RawDataActionCreate,
			Data:              raws[i],
		}); err != nil {
			return fmt.Errorf("record institution raw data: %w", err)
		}
		refreshes = append(refreshes, domain.NewEntityJob(domain.JobTypeInstitutionRefresh, res.ID, now))
	}
	if err := store.Institutions().LinkPublication(ctx, pub.ID, ids); err != nil {
		return fmt.Errorf("link institutions: %w", err)
	}
	if err := h.enqueuer.Enqueue(ctx, store, refreshes...); err != nil {
		return err
	}

	logger.Info().
		Str("catalog", catalogName).
		Int("institutions", len(ids)).
		Int("new", len(refreshes)).
		Msg("publication institutions linked")
	return nil
}

func (h *Handlers) institutionEnricher() (catalog.InstitutionEnricher, string) {
	for _, name := range institutionCatalogs {
		if e, ok := h.catalogs.InstitutionEnricher(name); ok {
			return e, name
		}
	}
	return nil, ""
}
