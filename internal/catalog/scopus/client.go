// Package scopus implements catalog.Adapter for Elsevier Scopus, with SciVal
// institution enrichment.
//
// API Documentation: https://dev.elsevier.com/api_docs.html
package scopus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
)

const (
	// DefaultBaseURL is the default Elsevier API base URL.
	DefaultBaseURL = "https://api.elsevier.com"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default page size for search requests.
	DefaultMaxResults = 25

	// maxSearchResults is the deepest offset the Search API pages to.
	maxSearchResults = 5000

	apiKeyHeader    = "X-ELS-APIKey"
	instTokenHeader = "X-ELS-Insttoken"

	searchPath            = "/content/search/scopus"
	authorSearchPath      = "/content/search/author"
	authorPath            = "/content/author/author_id/"
	affiliationPath       = "/content/affiliation/affiliation_id/"
	scivalInstitutionPath = "/analytics/scival/institution/"
	scivalPublicationPath = "/analytics/scival/publication/"
)

// Config holds configuration for the Scopus client.
type Config struct {
	// BaseURL is the Elsevier API base URL.
	BaseURL string

	// APIKey is the Elsevier API key. Required for all requests.
	APIKey string

	// InstToken is the optional institutional token.
	InstToken string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int

	// MaxResults is the page size for search requests.
	MaxResults int

	// CacheSize and CacheTTL configure the response cache. A zero TTL
	// disables caching.
	CacheSize int
	CacheTTL  time.Duration

	Enabled bool
	Metrics *observability.Metrics
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements catalog.Adapter for Scopus.
type Client struct {
	config     Config
	httpClient *catalog.HTTPClient
}

var (
	_ catalog.Adapter             = (*Client)(nil)
	_ catalog.InstitutionEnricher = (*Client)(nil)
)

// New creates a new Scopus client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := catalog.NewHTTPClient(catalog.HTTPClientConfig{
		Catalog:      domain.CatalogScopus,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxRetries:   cfg.MaxRetries,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
		Headers:      map[string]string{instTokenHeader: cfg.InstToken},
		Cache:        catalog.NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
		Metrics:      cfg.Metrics,
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new Scopus client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *catalog.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Catalog returns the catalog name.
func (c *Client) Catalog() string {
	return domain.CatalogScopus
}

// IsEnabled returns whether this catalog is enabled and has credentials.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// FetchPublication retrieves one document by Scopus ID, EID or DOI.
func (c *Client) FetchPublication(ctx context.Context, identifierOrDOI string) (*domain.PublicationData, error) {
	id := strings.TrimSpace(identifierOrDOI)
	var query string
	switch {
	case catalog.IsDOI(id):
		query = fmt.Sprintf("DOI(%s)", domain.NormalizeDOI(id))
	case strings.HasPrefix(id, "2-s2.0-"):
		query = fmt.Sprintf("EID(%s)", id)
	default:
		query = fmt.Sprintf("SCOPUS-ID(%s)", strings.TrimPrefix(id, "SCOPUS_ID:"))
	}

	pubs, _, err := c.search(ctx, query, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(pubs) == 0 {
		return nil, domain.NewNotFoundError("publication", identifierOrDOI)
	}
	return pubs[0], nil
}

// FetchAuthorPublications pages through every document of an author.
func (c *Client) FetchAuthorPublications(ctx context.Context, id string) ([]*domain.PublicationData, error) {
	query := fmt.Sprintf("AU-ID(%s)", strings.TrimSpace(id))

	var all []*domain.PublicationData
	for start := 0; start < maxSearchResults; start += c.config.MaxResults {
		pubs, total, err := c.search(ctx, query, start, c.config.MaxResults)
		if err != nil {
			return nil, err
		}
		all = append(all, pubs...)
		if len(pubs) == 0 || start+c.config.MaxResults >= total {
			break
		}
	}
	return all, nil
}

// search runs one page of a Scopus Search API query in the COMPLETE view.
func (c *Client) search(ctx context.Context, query string, start, count int) ([]*domain.PublicationData, int, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("view", "COMPLETE")
	q.Set("count", strconv.Itoa(count))
	if start > 0 {
		q.Set("start", strconv.Itoa(start))
	}

	var resp SearchResponse
	if err := c.httpClient.GetJSON(ctx, "search", c.buildURL(searchPath, q), &resp); err != nil {
		return nil, 0, err
	}

	pubs := make([]*domain.PublicationData, 0, len(resp.SearchResults.Entries))
	for _, raw := range resp.SearchResults.Entries {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, 0, fmt.Errorf("decoding entry: %w", err)
		}
		if pub := entryToPublication(&entry, raw); pub != nil {
			pubs = append(pubs, pub)
		}
	}

	total, _ := strconv.Atoi(resp.SearchResults.TotalResults)
	return pubs, total, nil
}

// FetchAuthor retrieves an author profile in the ENHANCED view.
func (c *Client) FetchAuthor(ctx context.Context, id string) (*domain.AuthorData, error) {
	q := url.Values{}
	q.Set("view", "ENHANCED")

	var resp AuthorRetrievalResponse
	if err := c.httpClient.GetJSON(ctx, "author", c.buildURL(authorPath+url.PathEscape(id), q), &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, domain.NewNotFoundError("author", id)
	}

	rec := resp.Results[0]
	raw, _ := json.Marshal(rec)
	author := authorRecordToData(&rec, raw)
	if author.CatalogIdentifier == "" {
		author.CatalogIdentifier = strings.TrimSpace(id)
	}
	return author, nil
}

// SearchSimilarAuthors finds author profiles by ORCID, or by surname and
// first name when given a display name.
func (c *Client) SearchSimilarAuthors(ctx context.Context, nameOrORCID string) ([]*domain.AuthorData, error) {
	var query string
	if catalog.IsORCID(nameOrORCID) {
		query = fmt.Sprintf("ORCID(%s)", catalog.NormalizeORCID(nameOrORCID))
	} else {
		given, surname := catalog.SplitName(nameOrORCID)
		if surname == "" {
			return nil, domain.NewValidationError("name", "empty author name")
		}
		query = fmt.Sprintf("AUTHLASTNAME(%s)", surname)
		if given != "" {
			query += fmt.Sprintf(" AND AUTHFIRST(%s)", given)
		}
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("count", strconv.Itoa(c.config.MaxResults))

	var resp struct {
		SearchResults struct {
			Entries []json.RawMessage `json:"entry"`
		} `json:"search-results"`
	}
	if err := c.httpClient.GetJSON(ctx, "author_search", c.buildURL(authorSearchPath, q), &resp); err != nil {
		return nil, err
	}

	authors := make([]*domain.AuthorData, 0, len(resp.SearchResults.Entries))
	for _, raw := range resp.SearchResults.Entries {
		var entry AuthorSearchEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decoding author entry: %w", err)
		}
		id := strings.TrimPrefix(entry.Identifier, "AUTHOR_ID:")
		if entry.Error != "" || id == "" {
			continue
		}

		author := &domain.AuthorData{
			Catalog:           domain.CatalogScopus,
			CatalogIdentifier: id,
			FirstName:         entry.PreferredName.GivenName,
			LastName:          entry.PreferredName.Surname,
			Initials:          entry.PreferredName.Initials,
			DisplayName:       displayName(entry.PreferredName),
			ORCID:             catalog.NormalizeORCID(entry.ORCID),
			Raw:               raw,
		}
		author.DocumentCount, _ = strconv.Atoi(entry.DocumentCount)
		if cur := entry.AffiliationCurrent; cur != nil && cur.ID != "" {
			author.Affiliations = []*domain.AffiliationData{{
				Catalog:           domain.CatalogScopus,
				CatalogIdentifier: cur.ID,
				Name:              cur.Name,
				City:              cur.City,
				Country:           cur.Country,
			}}
		}
		authors = append(authors, author)
	}
	return authors, nil
}

// FetchAffiliation retrieves an affiliation profile.
func (c *Client) FetchAffiliation(ctx context.Context, id string) (*domain.AffiliationData, error) {
	var resp AffiliationRetrievalResponse
	body := json.RawMessage{}
	if err := c.httpClient.GetJSON(ctx, "affiliation", c.buildURL(affiliationPath+url.PathEscape(id), nil), &body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding affiliation: %w", err)
	}

	r := resp.Result
	identifier := strings.TrimPrefix(r.CoreData.Identifier, "AFFILIATION_ID:")
	if identifier == "" {
		identifier = strings.TrimSpace(id)
	}
	return &domain.AffiliationData{
		Catalog:           domain.CatalogScopus,
		CatalogIdentifier: identifier,
		Name:              r.Name,
		Address:           r.Address,
		City:              r.City,
		Country:           r.Country,
		Raw:               body,
	}, nil
}

// FetchInstitution retrieves a SciVal institution.
func (c *Client) FetchInstitution(ctx context.Context, id string) (*domain.InstitutionData, error) {
	body := json.RawMessage{}
	if err := c.httpClient.GetJSON(ctx, "institution", c.buildURL(scivalInstitutionPath+url.PathEscape(id), nil), &body); err != nil {
		return nil, err
	}
	var resp SciValInstitutionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding institution: %w", err)
	}
	if resp.Institution.ID == "" {
		return nil, domain.NewNotFoundError("institution", id)
	}
	return scivalToInstitution(resp.Institution, body), nil
}

// FetchPublicationInstitutions resolves the DOI to a Scopus ID and returns
// the institutions SciVal attributes the publication to.
func (c *Client) FetchPublicationInstitutions(ctx context.Context, doi string) ([]*domain.InstitutionData, error) {
	pub, err := c.FetchPublication(ctx, doi)
	if err != nil {
		return nil, err
	}

	var resp SciValPublicationResponse
	endpoint := c.buildURL(scivalPublicationPath+url.PathEscape(pub.CatalogIdentifier), nil)
	if err := c.httpClient.GetJSON(ctx, "scival_publication", endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]*domain.InstitutionData, 0, len(resp.Publication.Institutions))
	for _, inst := range resp.Publication.Institutions {
		if inst.ID == "" {
			continue
		}
		raw, _ := json.Marshal(inst)
		out = append(out, scivalToInstitution(inst, raw))
	}
	return out, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
