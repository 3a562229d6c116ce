// Package domain provides domain models and business logic for the Catalog Sync Service.
package domain

import (
	"time"
)

// SourceStatus records how a Source relates to the academic it is linked to.
// These values must match the sources_status_check constraint.
type SourceStatus string

const (
	SourceStatusNone       SourceStatus = ""
	SourceStatusPotential  SourceStatus = "potential"
	SourceStatusMatched    SourceStatus = "matched"
	SourceStatusNotMatched SourceStatus = "not_matched"
)

// PublicationStatus is the derived publishing state of a Publication.
type PublicationStatus string

const (
	PublicationStatusUnknown   PublicationStatus = "unknown"
	PublicationStatusPublished PublicationStatus = "published"
	PublicationStatusInPress   PublicationStatus = "in_press"
)

// RawData actions recorded in the audit trail.
const (
	RawDataActionCreate  = "create"
	RawDataActionMerge   = "merge"
	RawDataActionRefresh = "refresh"
)

// Journal is a get-or-create lookup keyed by normalized name.
type Journal struct {
	ID             int64
	Name           string
	NormalizedName string
	CreatedAt      time.Time
}

// Subtype classifies a publication (article, book chapter, review, ...).
// Subtypes are keyed by description.
type Subtype struct {
	ID          int64
	Code        string
	Description string
	CreatedAt   time.Time
}

// Sponsor is a funding body named on a publication.
type Sponsor struct {
	ID             int64
	Name           string
	NormalizedName string

	// IsNIHR is set at creation from the configured NIHR sponsor name list.
	IsNIHR    bool
	CreatedAt time.Time
}

// Keyword is a free-text keyword, deduplicated by its case and diacritic
// folded form.
type Keyword struct {
	ID                int64
	Keyword           string
	NormalizedKeyword string
	CreatedAt         time.Time
}

// Affiliation is one catalog's organisational unit (department, faculty).
type Affiliation struct {
	ID                int64
	Catalog           string
	CatalogIdentifier string
	Name              string
	Address           string
	City              string
	Country           string
	LastRefreshedAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reference returns the normalized catalog reference of the affiliation.
func (a *Affiliation) Reference() CatalogReference {
	return NewCatalogReference(a.Catalog, a.CatalogIdentifier)
}

// Academic is a tracked internal researcher. An academic aggregates any
// number of Sources across catalogs.
type Academic struct {
	ID          int64
	DisplayName string
	ORCID       string
	Tracked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Source is one catalog's view of one author.
type Source struct {
	ID                int64
	Catalog           string
	CatalogIdentifier string
	DisplayName       string
	FirstName         string
	LastName          string
	Initials          string
	ORCID             string
	Href              string
	CitationCount     int
	DocumentCount     int
	HIndex            int

	// AcademicID links the source to a tracked researcher, if matched.
	AcademicID *int64
	Status     SourceStatus

	// Error is set when the catalog no longer resolves the identifier.
	Error         bool
	ErrorMessage  string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reference returns the normalized catalog reference of the source.
func (s *Source) Reference() CatalogReference {
	return NewCatalogReference(s.Catalog, s.CatalogIdentifier)
}

// ApplyAuthor overwrites the author-level fields from a catalog record.
func (s *Source) ApplyAuthor(a *AuthorData) {
	s.DisplayName = a.DisplayName
	s.FirstName = a.FirstName
	s.LastName = a.LastName
	s.Initials = a.Initials
	s.ORCID = a.ORCID
	s.Href = a.Href
	s.CitationCount = a.CitationCount
	s.DocumentCount = a.DocumentCount
	s.HIndex = a.HIndex
}

// Publication is the canonical, catalog-independent identity of an article.
type Publication struct {
	ID int64

	// DOI is nil when no catalog supplied one. Non-nil DOIs are unique.
	DOI                *string
	Reference          string
	IsPreprint         bool
	Status             PublicationStatus
	ValidationHistoric bool
	InitialisedAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CatalogPublication is one catalog's record of a Publication.
type CatalogPublication struct {
	ID                int64
	Catalog           string
	CatalogIdentifier string
	PublicationID     int64
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
	CoverDate         *time.Time
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	JournalID         *int64
	SubtypeID         *int64
	LastRefreshedAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reference returns the normalized catalog reference of the record.
func (c *CatalogPublication) Reference() CatalogReference {
	return NewCatalogReference(c.Catalog, c.CatalogIdentifier)
}

// ApplyScalars overwrites the scalar metadata from a catalog record. Absent
// strings become empty strings, never NULL.
func (c *CatalogPublication) ApplyScalars(p *PublicationData) {
	c.DOI = p.NormalizedDOI()
	c.Title = p.Title
	c.Abstract = p.Abstract
	c.Volume = p.Volume
	c.Issue = p.Issue
	c.Pages = p.Pages
	c.FundingText = p.FundingText
	c.IsOpenAccess = p.IsOpenAccess
	c.CitedByCount = p.CitedByCount
	c.Href = p.Href
	c.CoverDate = p.CoverDate
}

// Authorship is one ordered author row of a CatalogPublication together with
// the affiliations claimed for that authorship.
type Authorship struct {
	ID                   int64
	CatalogPublicationID int64
	SourceID             int64
	Ordinal              int
	AffiliationIDs       []int64
}

// RawData is an append-only audit row of an ingested payload.
type RawData struct {
	ID                int64
	Catalog           string
	CatalogIdentifier string
	Action            string
	Data              []byte
	CreatedAt         time.Time
}

// Institution is an institution-level record from SciVal or OpenAlex.
type Institution struct {
	ID                int64
	Catalog           string
	CatalogIdentifier string
	Name              string
	Sector            string
	CountryCode       string
	LastRefreshedAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Folder is a standing collection of publications owned by an academic.
type Folder struct {
	ID         int64
	Name       string
	AcademicID int64
	Autofill   bool
	CreatedAt  time.Time
}
