package domain

import (
	"encoding/json"
	"time"
)

// AffiliationData is one catalog's view of an affiliation, as decoded by a
// catalog adapter.
type AffiliationData struct {
	Catalog           string `validate:"required"`
	CatalogIdentifier string `validate:"required"`
	Name              string
	Address           string
	City              string
	Country           string

	// Raw is the payload the record was decoded from.
	Raw json.RawMessage
}

// Reference returns the normalized catalog reference of the affiliation.
func (a *AffiliationData) Reference() CatalogReference {
	return NewCatalogReference(a.Catalog, a.CatalogIdentifier)
}

// AuthorData is one catalog's view of an author, together with the
// affiliations the catalog lists for them.
type AuthorData struct {
	Catalog           string `validate:"required"`
	CatalogIdentifier string `validate:"required"`
	DisplayName       string
	FirstName         string
	LastName          string
	Initials          string
	ORCID             string
	Href              string
	CitationCount     int
	DocumentCount     int
	HIndex            int

	Affiliations []*AffiliationData
	Raw          json.RawMessage
}

// Reference returns the normalized catalog reference of the author.
func (a *AuthorData) Reference() CatalogReference {
	return NewCatalogReference(a.Catalog, a.CatalogIdentifier)
}

// PublicationData is one catalog's view of a publication. Authors are kept in
// the order the catalog lists them.
type PublicationData struct {
	Catalog           string `validate:"required"`
	CatalogIdentifier string `validate:"required"`
	DOI               string
	Title             string
	Abstract          string
	Volume            string
	Issue             string
	Pages             string
	FundingText       string
	IsOpenAccess      bool
	CitedByCount      int
	Href              string

	// Year, Month and Day carry whatever date granularity the catalog
	// supplied. Zero means the part is absent.
	Year      int
	Month     int
	Day       int
	CoverDate *time.Time

	JournalName        string
	SubtypeCode        string
	SubtypeDescription string
	Sponsors           []string
	Keywords           []string

	Authors []*AuthorData
	Raw     json.RawMessage
}

// Reference returns the normalized catalog reference of the publication.
func (p *PublicationData) Reference() CatalogReference {
	return NewCatalogReference(p.Catalog, p.CatalogIdentifier)
}

// NormalizedDOI returns the DOI in canonical form, or "" when absent.
func (p *PublicationData) NormalizedDOI() string {
	return NormalizeDOI(p.DOI)
}

// InstitutionData is an institution-level record, such as a SciVal or
// OpenAlex institution.
type InstitutionData struct {
	Catalog           string `validate:"required"`
	CatalogIdentifier string `validate:"required"`
	Name              string
	Sector            string
	CountryCode       string

	Raw json.RawMessage
}

// Reference returns the normalized catalog reference of the institution.
func (i *InstitutionData) Reference() CatalogReference {
	return NewCatalogReference(i.Catalog, i.CatalogIdentifier)
}
