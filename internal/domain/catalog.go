package domain

import "strings"

// Catalog names of the external bibliographic catalogs the service syncs from.
const (
	CatalogScopus   = "scopus"
	CatalogOpenAlex = "openalex"
)

// CatalogReference correlates a catalog record with the canonical entity it
// resolves to. It is comparable and safe to use as a map key; the zero value
// never matches a real record.
//
// References are only held in memory for the duration of one reconciliation
// pass and are never persisted.
type CatalogReference struct {
	Catalog    string
	Identifier string
}

// NewCatalogReference builds a reference with both parts lower-cased and
// trimmed, so identifiers that differ only in case or surrounding whitespace
// compare equal.
func NewCatalogReference(catalog, identifier string) CatalogReference {
	return CatalogReference{
		Catalog:    strings.ToLower(strings.TrimSpace(catalog)),
		Identifier: strings.ToLower(strings.TrimSpace(identifier)),
	}
}

// IsZero reports whether either part of the reference is empty.
func (r CatalogReference) IsZero() bool {
	return r.Catalog == "" || r.Identifier == ""
}

// String returns the reference in "catalog:identifier" form.
func (r CatalogReference) String() string {
	return r.Catalog + ":" + r.Identifier
}

// GroupByCatalog splits references into per-catalog identifier lists,
// preserving first-seen order and dropping duplicates and zero references.
// Catalog identifiers are only unique within their catalog, so lookups are
// always issued one catalog at a time.
func GroupByCatalog(refs []CatalogReference) map[string][]string {
	grouped := make(map[string][]string)
	seen := make(map[CatalogReference]struct{}, len(refs))
	for _, ref := range refs {
		if ref.IsZero() {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		grouped[ref.Catalog] = append(grouped[ref.Catalog], ref.Identifier)
	}
	return grouped
}
