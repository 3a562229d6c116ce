package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Writer merges one publication DTO into its CatalogPublication.
type Writer struct {
	enqueuer       *queue.Enqueuer
	historicCutoff time.Time
	logger         zerolog.Logger
}

// NewWriter creates a Writer. Records dated before historicCutoff flag their
// publication as historic; a zero cutoff disables the flag.
func NewWriter(historicCutoff time.Time, enqueuer *queue.Enqueuer, logger zerolog.Logger) *Writer {
	return &Writer{
		enqueuer:       enqueuer,
		historicCutoff: historicCutoff,
		logger:         logger.With().Str("component", "merge_writer").Logger(),
	}
}

// Merge persists dto using the IDs resolved in xrefs and returns the merged
// record. The record's scalars, period, lookups and authorship are replaced
// by what dto carries.
func (w *Writer) Merge(ctx context.Context, store repository.Store, dto *domain.PublicationData, xrefs *Xrefs) (*domain.CatalogPublication, error) {
	cp, _, err := w.merge(ctx, store, dto, xrefs)
	return cp, err
}

func (w *Writer) merge(ctx context.Context, store repository.Store, dto *domain.PublicationData, xrefs *Xrefs) (*domain.CatalogPublication, bool, error) {
	ref := dto.Reference()
	publicationID, ok := xrefs.Publications[ref]
	if !ok {
		return nil, false, fmt.Errorf("merge %s: %w", ref, domain.NewNotFoundError("resolved publication", ref.String()))
	}

	cp, created, err := w.findOrCreate(ctx, store, ref, publicationID)
	if err != nil {
		return nil, false, fmt.Errorf("merge %s: %w", ref, err)
	}

	cp.ApplyScalars(dto)
	cp.PeriodStart, cp.PeriodEnd = domain.ComputePublicationPeriod(dto.Year, dto.Month, dto.Day, dto.CoverDate)
	cp.JournalID = idPtr(xrefs.Journals, ref)
	cp.SubtypeID = idPtr(xrefs.Subtypes, ref)

	if err := store.CatalogPublications().Update(ctx, cp); err != nil {
		return nil, false, fmt.Errorf("merge %s: update: %w", ref, err)
	}
	if err := store.CatalogPublications().ReplaceSponsors(ctx, cp.ID, xrefs.Sponsors[ref]); err != nil {
		return nil, false, fmt.Errorf("merge %s: sponsors: %w", ref, err)
	}
	if err := store.CatalogPublications().ReplaceKeywords(ctx, cp.ID, xrefs.Keywords[ref]); err != nil {
		return nil, false, fmt.Errorf("merge %s: keywords: %w", ref, err)
	}

	if err := store.RawData().Insert(ctx, &domain.RawData{
		Catalog:           ref.Catalog,
		CatalogIdentifier: ref.Identifier,
		Action:            domain.RawDataActionMerge,
		Data:              dto.Raw,
	}); err != nil {
		return nil, false, fmt.Errorf("merge %s: raw data: %w", ref, err)
	}

	historic := domain.IsHistoric(cp.CoverDate, cp.PeriodStart, w.historicCutoff)
	if err := store.Publications().SetValidationHistoric(ctx, cp.PublicationID, historic); err != nil {
		return nil, false, fmt.Errorf("merge %s: historic flag: %w", ref, err)
	}

	authorships := buildAuthorships(cp.ID, dto.Authors, xrefs)
	if err := store.CatalogPublications().ReplaceAuthorships(ctx, cp.ID, authorships); err != nil {
		return nil, false, fmt.Errorf("merge %s: authorship: %w", ref, err)
	}

	w.logger.Debug().
		Str("catalog", ref.Catalog).
		Str("catalog_identifier", ref.Identifier).
		Int64("catalog_publication_id", cp.ID).
		Int64("publication_id", cp.PublicationID).
		Bool("created", created).
		Int("authors", len(authorships)).
		Msg("catalog publication merged")

	return cp, created, nil
}

// findOrCreate loads the record for ref or creates it under publicationID.
// New records are scheduled for a refresh.
func (w *Writer) findOrCreate(ctx context.Context, store repository.Store, ref domain.CatalogReference, publicationID int64) (*domain.CatalogPublication, bool, error) {
	cp, err := store.CatalogPublications().GetByReference(ctx, ref)
	if err == nil {
		return cp, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("find catalog publication: %w", err)
	}

	cp = &domain.CatalogPublication{
		Catalog:           ref.Catalog,
		CatalogIdentifier: ref.Identifier,
		PublicationID:     publicationID,
	}
	res, err := store.CatalogPublications().Create(ctx, cp)
	if err != nil {
		return nil, false, fmt.Errorf("create catalog publication: %w", err)
	}
	if !res.Inserted {
		// Adopted a row created concurrently; reload it to get its owner.
		cp, err = store.CatalogPublications().Get(ctx, res.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load adopted catalog publication: %w", err)
		}
		return cp, false, nil
	}

	if err := w.enqueuer.Entity(ctx, store, domain.JobTypeCatalogPublicationRefresh, cp.ID); err != nil {
		return nil, false, err
	}
	return cp, true, nil
}

// buildAuthorships maps authors to ordered authorship rows. The ordinal is
// the author's index in the DTO; authors that were not resolved are left out.
func buildAuthorships(catalogPublicationID int64, authors []*domain.AuthorData, xrefs *Xrefs) []*domain.Authorship {
	rows := make([]*domain.Authorship, 0, len(authors))
	for i, a := range authors {
		if a == nil {
			continue
		}
		sourceID, ok := xrefs.Sources[a.Reference()]
		if !ok {
			continue
		}
		var affiliationIDs []int64
		for _, af := range a.Affiliations {
			if af == nil {
				continue
			}
			if id, ok := xrefs.Affiliations[af.Reference()]; ok {
				affiliationIDs = append(affiliationIDs, id)
			}
		}
		rows = append(rows, &domain.Authorship{
			CatalogPublicationID: catalogPublicationID,
			SourceID:             sourceID,
			Ordinal:              i,
			AffiliationIDs:       uniqueIDs(affiliationIDs),
		})
	}
	return rows
}

func idPtr(m map[domain.CatalogReference]int64, ref domain.CatalogReference) *int64 {
	id, ok := m[ref]
	if !ok {
		return nil
	}
	return &id
}
