package repository

import (
	"context"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// AffiliationRepository handles catalog affiliations keyed by
// (catalog, catalog_identifier).
type AffiliationRepository interface {
	// FindByIdentifiers returns existing affiliation IDs of one catalog keyed
	// by catalog identifier.
	FindByIdentifiers(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error)

	// BulkGetOrCreate creates the given affiliations, adopting rows that
	// already exist. IDs are set on the inputs and results follow input order.
	BulkGetOrCreate(ctx context.Context, affiliations []*domain.Affiliation) ([]Created, error)

	// Get retrieves an affiliation by ID.
	// Returns domain.ErrNotFound if no matching affiliation exists.
	Get(ctx context.Context, id int64) (*domain.Affiliation, error)

	// Update overwrites the descriptive fields and last_refreshed_at.
	Update(ctx context.Context, affiliation *domain.Affiliation) error
}

// SourceRepository handles catalog author records keyed by
// (catalog, catalog_identifier).
type SourceRepository interface {
	// FindByIdentifiers returns existing source IDs of one catalog keyed by
	// catalog identifier.
	FindByIdentifiers(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error)

	// BulkGetOrCreate creates the given sources, adopting rows that already
	// exist. IDs are set on the inputs and results follow input order.
	BulkGetOrCreate(ctx context.Context, sources []*domain.Source) ([]Created, error)

	// Get retrieves a source by ID.
	// Returns domain.ErrNotFound if no matching source exists.
	Get(ctx context.Context, id int64) (*domain.Source, error)

	// ListByAcademic returns the sources linked to an academic, ordered by ID.
	ListByAcademic(ctx context.Context, academicID int64) ([]*domain.Source, error)

	// ListByORCID returns every source carrying the given ORCID.
	ListByORCID(ctx context.Context, orcid string) ([]*domain.Source, error)

	// Update overwrites the author fields, the error flags and last_fetched_at.
	Update(ctx context.Context, source *domain.Source) error

	// SetStatus links a source to an academic with the given status.
	SetStatus(ctx context.Context, id int64, academicID *int64, status domain.SourceStatus) error

	// ClaimPotential links the unowned sources among ids to an academic as
	// potential matches. Returns the number of sources claimed.
	ClaimPotential(ctx context.Context, ids []int64, academicID int64) (int64, error)

	// MarkError flags a source whose catalog identity no longer resolves.
	MarkError(ctx context.Context, id int64, message string, at time.Time) error

	// ReplaceAffiliations replaces the current affiliations of a source.
	ReplaceAffiliations(ctx context.Context, sourceID int64, affiliationIDs []int64) error
}

// AcademicRepository handles tracked researchers.
type AcademicRepository interface {
	// Get retrieves an academic by ID.
	// Returns domain.ErrNotFound if no matching academic exists.
	Get(ctx context.Context, id int64) (*domain.Academic, error)

	// ListTrackedIDs returns the IDs of all tracked academics in ID order.
	ListTrackedIDs(ctx context.Context) ([]int64, error)
}

// InstitutionRepository handles institution-level records keyed by
// (catalog, catalog_identifier).
type InstitutionRepository interface {
	// BulkGetOrCreate creates the given institutions, adopting rows that
	// already exist. IDs are set on the inputs and results follow input order.
	BulkGetOrCreate(ctx context.Context, institutions []*domain.Institution) ([]Created, error)

	// Get retrieves an institution by ID.
	// Returns domain.ErrNotFound if no matching institution exists.
	Get(ctx context.Context, id int64) (*domain.Institution, error)

	// Update overwrites the descriptive fields and last_refreshed_at.
	Update(ctx context.Context, institution *domain.Institution) error

	// LinkPublication links institutions to a publication. Existing links are kept.
	LinkPublication(ctx context.Context, publicationID int64, institutionIDs []int64) error
}
