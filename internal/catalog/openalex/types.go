package openalex

// ListResponse is the envelope of OpenAlex list endpoints.
type ListResponse[T any] struct {
	Meta    Meta `json:"meta"`
	Results []T  `json:"results"`
}

// Meta contains metadata about the results including pagination info.
type Meta struct {
	Count      int    `json:"count"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

// Work represents an academic work in OpenAlex.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	PublicationDate string       `json:"publication_date"`
	Type            string       `json:"type"`
	TypeCrossref    string       `json:"type_crossref"`
	CitedByCount    int          `json:"cited_by_count"`
	OpenAccess      *OpenAccess  `json:"open_access"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	Biblio          Biblio       `json:"biblio"`
	Keywords        []Keyword    `json:"keywords"`
	Grants          []Grant      `json:"grants"`

	// Abstract is stored as an inverted index - we will reconstruct it
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// OpenAccess contains open access information for a work.
type OpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAURL    string `json:"oa_url"`
	OAStatus string `json:"oa_status"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	AuthorPosition string        `json:"author_position"`
	Author         AuthorInfo    `json:"author"`
	Institutions   []Institution `json:"institutions"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

// Institution represents an academic institution.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
	Geo         *Geo   `json:"geo,omitempty"`
}

// Geo is the location of an institution.
type Geo struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Location represents where a work is available.
type Location struct {
	Source *Source `json:"source"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Biblio holds volume, issue and page information.
type Biblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}

// Keyword is a keyword OpenAlex assigned to a work.
type Keyword struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// Grant is a funder award listed on a work.
type Grant struct {
	Funder            string `json:"funder"`
	FunderDisplayName string `json:"funder_display_name"`
	AwardID           string `json:"award_id"`
}

// Author is an OpenAlex author profile.
type Author struct {
	ID                    string        `json:"id"`
	DisplayName           string        `json:"display_name"`
	Orcid                 string        `json:"orcid"`
	WorksCount            int           `json:"works_count"`
	CitedByCount          int           `json:"cited_by_count"`
	SummaryStats          SummaryStats  `json:"summary_stats"`
	LastKnownInstitutions []Institution `json:"last_known_institutions"`
}

// SummaryStats holds citation indicators of an author.
type SummaryStats struct {
	HIndex int `json:"h_index"`
}
