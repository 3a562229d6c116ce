// Package catalog defines the contract between the reconciliation engine and
// the external bibliographic catalogs it harvests from.
//
// Each catalog (Scopus, OpenAlex) implements Adapter and decodes its own
// payloads into the domain DTOs. Adapters never touch the database: they are
// pure producers of domain.PublicationData, domain.AuthorData,
// domain.AffiliationData and domain.InstitutionData batches.
//
// Example usage:
//
//	adapter := registry.Get(domain.CatalogScopus)
//	pubs, err := adapter.FetchAuthorPublications(ctx, "7004212771")
//	if errors.Is(err, domain.ErrNotFound) {
//		// the author no longer exists upstream
//	}
//
// # Errors
//
// Adapters report outcomes through the domain error types:
//
//   - *domain.NotFoundError when the record does not exist upstream
//   - *domain.RateLimitError when the catalog kept answering 429 after retries
//   - *domain.CatalogAPIError for any other non-success response
package catalog

import (
	"context"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Adapter is implemented by every external catalog client.
type Adapter interface {
	// Catalog returns the catalog name the adapter stamps on every DTO.
	Catalog() string

	// FetchPublication retrieves one publication by catalog identifier or DOI.
	FetchPublication(ctx context.Context, identifierOrDOI string) (*domain.PublicationData, error)

	// FetchAuthor retrieves one author profile, including current affiliations.
	FetchAuthor(ctx context.Context, id string) (*domain.AuthorData, error)

	// FetchAuthorPublications retrieves every publication the catalog lists
	// for an author.
	FetchAuthorPublications(ctx context.Context, id string) ([]*domain.PublicationData, error)

	// FetchAffiliation retrieves one affiliation record.
	FetchAffiliation(ctx context.Context, id string) (*domain.AffiliationData, error)

	// SearchSimilarAuthors returns author profiles matching an ORCID or a
	// display name.
	SearchSimilarAuthors(ctx context.Context, nameOrORCID string) ([]*domain.AuthorData, error)

	// FetchInstitution retrieves one institution-level record.
	FetchInstitution(ctx context.Context, id string) (*domain.InstitutionData, error)

	// IsEnabled reports whether the adapter is configured for use.
	IsEnabled() bool
}

// InstitutionEnricher is implemented by adapters that can list the
// institutions behind a publication.
type InstitutionEnricher interface {
	FetchPublicationInstitutions(ctx context.Context, doi string) ([]*domain.InstitutionData, error)
}
