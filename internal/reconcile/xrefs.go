// Package reconcile turns catalog DTO batches into persisted catalog
// entities.
//
// A pass has two stages. The Resolver maps every catalog reference in a batch
// to an internal ID, creating missing lookups and entities in bulk. The
// Writer then merges each publication DTO into its CatalogPublication using
// those maps. Reconciler runs both stages and records outbox events.
//
// Every operation takes the caller's repository.Store; nothing here opens its
// own transaction.
package reconcile

import (
	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Xrefs holds the resolved IDs of one batch. Publication-level maps are
// keyed by the publication DTO's reference; Affiliations and Sources are
// keyed by the affiliation and author references.
type Xrefs struct {
	Journals     map[domain.CatalogReference]int64
	Subtypes     map[domain.CatalogReference]int64
	Sponsors     map[domain.CatalogReference][]int64
	Keywords     map[domain.CatalogReference][]int64
	Publications map[domain.CatalogReference]int64
	Affiliations map[domain.CatalogReference]int64
	Sources      map[domain.CatalogReference]int64

	// NewPublications lists publications created by this pass, in creation order.
	NewPublications []int64
}

// NewXrefs returns an Xrefs with every map allocated.
func NewXrefs() *Xrefs {
	return &Xrefs{
		Journals:     map[domain.CatalogReference]int64{},
		Subtypes:     map[domain.CatalogReference]int64{},
		Sponsors:     map[domain.CatalogReference][]int64{},
		Keywords:     map[domain.CatalogReference][]int64{},
		Publications: map[domain.CatalogReference]int64{},
		Affiliations: map[domain.CatalogReference]int64{},
		Sources:      map[domain.CatalogReference]int64{},
	}
}

// publicationRefs returns the references of dtos in order.
func publicationRefs(dtos []*domain.PublicationData) []domain.CatalogReference {
	refs := make([]domain.CatalogReference, 0, len(dtos))
	for _, dto := range dtos {
		refs = append(refs, dto.Reference())
	}
	return refs
}

// authorsOf flattens the authors of dtos.
func authorsOf(dtos []*domain.PublicationData) []*domain.AuthorData {
	var authors []*domain.AuthorData
	for _, dto := range dtos {
		authors = append(authors, dto.Authors...)
	}
	return authors
}

// uniqueIDs drops duplicates, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
