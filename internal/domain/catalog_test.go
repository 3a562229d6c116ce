package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCatalogReference(t *testing.T) {
	tests := []struct {
		name       string
		catalog    string
		identifier string
	}{
		{name: "already normalized", catalog: "scopus", identifier: "2-s2.0-85000000001"},
		{name: "upper case", catalog: "SCOPUS", identifier: "2-S2.0-85000000001"},
		{name: "surrounding whitespace", catalog: "  scopus\t", identifier: "\n2-s2.0-85000000001  "},
		{name: "mixed", catalog: " Scopus ", identifier: " 2-S2.0-85000000001"},
	}

	want := CatalogReference{Catalog: "scopus", Identifier: "2-s2.0-85000000001"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := NewCatalogReference(tt.catalog, tt.identifier)
			assert.Equal(t, want, ref)

			m := map[CatalogReference]int{want: 1}
			assert.Equal(t, 1, m[ref], "references must hash identically")
		})
	}
}

func TestCatalogReference_IsZero(t *testing.T) {
	assert.True(t, CatalogReference{}.IsZero())
	assert.True(t, NewCatalogReference("openalex", "  ").IsZero())
	assert.True(t, NewCatalogReference("", "W123").IsZero())
	assert.False(t, NewCatalogReference("openalex", "W123").IsZero())
}

func TestCatalogReference_String(t *testing.T) {
	assert.Equal(t, "openalex:w123", NewCatalogReference("OpenAlex", "W123").String())
}

func TestGroupByCatalog(t *testing.T) {
	refs := []CatalogReference{
		NewCatalogReference("scopus", "A"),
		NewCatalogReference("openalex", "W1"),
		NewCatalogReference("SCOPUS", "a"),
		NewCatalogReference("scopus", "B"),
		{},
	}

	grouped := GroupByCatalog(refs)

	assert.Len(t, grouped, 2)
	assert.Equal(t, []string{"a", "b"}, grouped["scopus"])
	assert.Equal(t, []string{"w1"}, grouped["openalex"])
}

func TestDTOReferences(t *testing.T) {
	pub := &PublicationData{Catalog: "Scopus", CatalogIdentifier: " X1 "}
	author := &AuthorData{Catalog: "scopus", CatalogIdentifier: "57000000000"}
	aff := &AffiliationData{Catalog: "SCOPUS", CatalogIdentifier: "60000001"}
	inst := &InstitutionData{Catalog: "openalex", CatalogIdentifier: "I27837315"}

	assert.Equal(t, CatalogReference{"scopus", "x1"}, pub.Reference())
	assert.Equal(t, CatalogReference{"scopus", "57000000000"}, author.Reference())
	assert.Equal(t, CatalogReference{"scopus", "60000001"}, aff.Reference())
	assert.Equal(t, CatalogReference{"openalex", "i27837315"}, inst.Reference())
}
