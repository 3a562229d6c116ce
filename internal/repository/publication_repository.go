package repository

import (
	"context"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// PublicationRepository handles canonical publications.
type PublicationRepository interface {
	// FindByDOIs returns existing publication IDs keyed by normalized DOI.
	FindByDOIs(ctx context.Context, dois []string) (map[string]int64, error)

	// CreateMany creates one publication per entry. A nil DOI always creates a
	// new row; a non-nil DOI adopts an existing publication with that DOI.
	// Results follow input order.
	CreateMany(ctx context.Context, dois []*string) ([]Created, error)

	// Get retrieves a publication by ID.
	// Returns domain.ErrNotFound if no matching publication exists.
	Get(ctx context.Context, id int64) (*domain.Publication, error)

	// UpdateDerived writes the derived display fields and initialised_at.
	UpdateDerived(ctx context.Context, publication *domain.Publication) error

	// SetValidationHistoric sets the historic validation flag.
	SetValidationHistoric(ctx context.Context, id int64, historic bool) error

	// DeleteUnused deletes publications without any catalog publication and
	// returns the number deleted.
	DeleteUnused(ctx context.Context) (int64, error)
}

// CatalogPublicationRepository handles per-catalog publication records and
// their sponsor, keyword and authorship associations.
type CatalogPublicationRepository interface {
	// FindPublicationIDs returns, for the existing records of one catalog, the
	// owning publication ID keyed by catalog identifier.
	FindPublicationIDs(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error)

	// Get retrieves a catalog publication by ID.
	// Returns domain.ErrNotFound if no matching record exists.
	Get(ctx context.Context, id int64) (*domain.CatalogPublication, error)

	// GetByReference retrieves a catalog publication by catalog and identifier.
	// Returns domain.ErrNotFound if no matching record exists.
	GetByReference(ctx context.Context, ref domain.CatalogReference) (*domain.CatalogPublication, error)

	// Create inserts a catalog publication, adopting an existing row with the
	// same catalog and identifier. The ID is set on the input.
	Create(ctx context.Context, cp *domain.CatalogPublication) (Created, error)

	// Update overwrites scalars, period, journal and subtype.
	Update(ctx context.Context, cp *domain.CatalogPublication) error

	// MarkRefreshed stamps last_refreshed_at.
	MarkRefreshed(ctx context.Context, id int64, at time.Time) error

	// ListByPublication returns the catalog records of a publication.
	ListByPublication(ctx context.Context, publicationID int64) ([]*domain.CatalogPublication, error)

	// ExistsForPublication reports whether a publication has a record in catalog.
	ExistsForPublication(ctx context.Context, publicationID int64, catalog string) (bool, error)

	// ReplaceSponsors replaces the sponsor set of a record.
	ReplaceSponsors(ctx context.Context, id int64, sponsorIDs []int64) error

	// ReplaceKeywords replaces the keyword set of a record.
	ReplaceKeywords(ctx context.Context, id int64, keywordIDs []int64) error

	// ReplaceAuthorships deletes every authorship row and affiliation link of
	// a record and inserts the given rows in order. Row IDs are set on the inputs.
	ReplaceAuthorships(ctx context.Context, id int64, authorships []*domain.Authorship) error

	// ListAuthorships returns the authorship rows of a record ordered by ordinal.
	ListAuthorships(ctx context.Context, id int64) ([]*domain.Authorship, error)

	// ListAuthorNames returns the display names of a record's authors ordered
	// by ordinal.
	ListAuthorNames(ctx context.Context, id int64) ([]string, error)
}

// RawDataRepository records ingested payloads.
type RawDataRepository interface {
	// Insert appends a raw data row. An empty payload is stored as {}.
	Insert(ctx context.Context, raw *domain.RawData) error
}

// FolderRepository handles standing publication collections.
type FolderRepository interface {
	// ListAutofill returns the folders with autofill enabled.
	ListAutofill(ctx context.Context) ([]*domain.Folder, error)

	// AttachMatching attaches to a folder every publication authored through a
	// source of the folder's academic whose period overlaps [from, to].
	// Returns the number of publications newly attached.
	AttachMatching(ctx context.Context, folder *domain.Folder, from, to time.Time) (int64, error)
}
