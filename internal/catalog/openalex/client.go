// Package openalex implements catalog.Adapter for OpenAlex.
//
// OpenAlex is a free, open catalog of scholarly works, authors and
// institutions. It has no affiliation records below institution level, so
// affiliations and institutions are both served from /institutions.
//
// API Documentation: https://docs.openalex.org/
package openalex

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default page size, the OpenAlex maximum.
	DefaultMaxResults = 200

	// maxPages bounds cursor pagination of one author's works.
	maxPages = 50

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// APIKey is the optional premium API key.
	APIKey string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxRetries int

	// MaxResults is the page size for list requests, at most 200.
	MaxResults int

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
	if c.MaxResults <= 0 || c.MaxResults > DefaultMaxResults {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements catalog.Adapter for OpenAlex.
type Client struct {
	config     Config
	httpClient *catalog.HTTPClient
}

var (
	_ catalog.Adapter             = (*Client)(nil)
	_ catalog.InstitutionEnricher = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := catalog.NewHTTPClient(catalog.HTTPClientConfig{
		Catalog:    domain.CatalogOpenAlex,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  "Helixir-CatalogSync/1.0 (mailto:" + cfg.Email + ")",
		Cache:      catalog.NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
		Metrics:    cfg.Metrics,
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
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
	return domain.CatalogOpenAlex
}

// IsEnabled returns whether this catalog is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// FetchPublication retrieves a work by OpenAlex ID or DOI.
func (c *Client) FetchPublication(ctx context.Context, identifierOrDOI string) (*domain.PublicationData, error) {
	var raw json.RawMessage
	if err := c.httpClient.GetJSON(ctx, "work", c.buildURL("/works/"+workPathID(identifierOrDOI), nil), &raw); err != nil {
		return nil, err
	}

	var work Work
	if err := json.Unmarshal(raw, &work); err != nil {
		return nil, err
	}
	pub := workToPublication(&work, raw)
	if pub == nil {
		return nil, domain.NewNotFoundError("publication", identifierOrDOI)
	}
	return pub, nil
}

// FetchAuthorPublications follows the cursor through every work of an
// author.
func (c *Client) FetchAuthorPublications(ctx context.Context, id string) ([]*domain.PublicationData, error) {
	authorID := shortID(id)

	var pubs []*domain.PublicationData
	cursor := "*"
	for page := 0; page < maxPages && cursor != ""; page++ {
		q := url.Values{}
		q.Set("filter", "author.id:"+authorID)
		q.Set("per-page", strconv.Itoa(c.config.MaxResults))
		q.Set("cursor", cursor)

		var resp ListResponse[json.RawMessage]
		if err := c.httpClient.GetJSON(ctx, "works", c.buildURL("/works", q), &resp); err != nil {
			return nil, err
		}
		for _, raw := range resp.Results {
			var work Work
			if err := json.Unmarshal(raw, &work); err != nil {
				return nil, err
			}
			if pub := workToPublication(&work, raw); pub != nil {
				pubs = append(pubs, pub)
			}
		}
		if len(resp.Results) == 0 {
			break
		}
		cursor = resp.Meta.NextCursor
	}
	return pubs, nil
}

// FetchAuthor retrieves an author profile.
func (c *Client) FetchAuthor(ctx context.Context, id string) (*domain.AuthorData, error) {
	var raw json.RawMessage
	if err := c.httpClient.GetJSON(ctx, "author", c.buildURL("/authors/"+shortID(id), nil), &raw); err != nil {
		return nil, err
	}
	var author Author
	if err := json.Unmarshal(raw, &author); err != nil {
		return nil, err
	}
	data := authorToData(&author, raw)
	if data.CatalogIdentifier == "" {
		return nil, domain.NewNotFoundError("author", id)
	}
	return data, nil
}

// SearchSimilarAuthors filters authors by ORCID, or runs a name search.
func (c *Client) SearchSimilarAuthors(ctx context.Context, nameOrORCID string) ([]*domain.AuthorData, error) {
	q := url.Values{}
	if catalog.IsORCID(nameOrORCID) {
		q.Set("filter", "orcid:"+catalog.NormalizeORCID(nameOrORCID))
	} else {
		name := strings.Join(strings.Fields(nameOrORCID), " ")
		if name == "" {
			return nil, domain.NewValidationError("name", "empty author name")
		}
		q.Set("search", name)
	}
	q.Set("per-page", "25")

	var resp ListResponse[json.RawMessage]
	if err := c.httpClient.GetJSON(ctx, "author_search", c.buildURL("/authors", q), &resp); err != nil {
		return nil, err
	}

	authors := make([]*domain.AuthorData, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var author Author
		if err := json.Unmarshal(raw, &author); err != nil {
			return nil, err
		}
		if data := authorToData(&author, raw); data.CatalogIdentifier != "" {
			authors = append(authors, data)
		}
	}
	return authors, nil
}

// FetchAffiliation retrieves an institution as an affiliation record.
func (c *Client) FetchAffiliation(ctx context.Context, id string) (*domain.AffiliationData, error) {
	inst, raw, err := c.fetchInstitution(ctx, id)
	if err != nil {
		return nil, err
	}
	af := institutionToAffiliation(inst)
	af.Raw = raw
	return af, nil
}

// FetchInstitution retrieves an institution.
func (c *Client) FetchInstitution(ctx context.Context, id string) (*domain.InstitutionData, error) {
	inst, raw, err := c.fetchInstitution(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.InstitutionData{
		Catalog:           domain.CatalogOpenAlex,
		CatalogIdentifier: shortID(inst.ID),
		Name:              inst.DisplayName,
		Sector:            inst.Type,
		CountryCode:       strings.ToUpper(inst.CountryCode),
		Raw:               raw,
	}, nil
}

func (c *Client) fetchInstitution(ctx context.Context, id string) (*Institution, json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.httpClient.GetJSON(ctx, "institution", c.buildURL("/institutions/"+shortID(id), nil), &raw); err != nil {
		return nil, nil, err
	}
	var inst Institution
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, nil, err
	}
	if shortID(inst.ID) == "" {
		return nil, nil, domain.NewNotFoundError("institution", id)
	}
	return &inst, raw, nil
}

// FetchPublicationInstitutions returns the distinct institutions on the
// authorships of the work with the given DOI.
func (c *Client) FetchPublicationInstitutions(ctx context.Context, doi string) ([]*domain.InstitutionData, error) {
	var work Work
	if err := c.httpClient.GetJSON(ctx, "work", c.buildURL("/works/"+workPathID(doi), nil), &work); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []*domain.InstitutionData
	for _, a := range work.Authorships {
		for _, inst := range a.Institutions {
			id := shortID(inst.ID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			raw, _ := json.Marshal(inst)
			out = append(out, &domain.InstitutionData{
				Catalog:           domain.CatalogOpenAlex,
				CatalogIdentifier: id,
				Name:              inst.DisplayName,
				Sector:            inst.Type,
				CountryCode:       strings.ToUpper(inst.CountryCode),
				Raw:               raw,
			})
		}
	}
	return out, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
	if c.config.APIKey != "" {
		query.Set("api_key", c.config.APIKey)
	}

	u := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// workPathID maps an OpenAlex ID or DOI to the /works path segment.
func workPathID(id string) string {
	id = strings.TrimSpace(id)
	if catalog.IsDOI(id) {
		return doiPrefix + domain.NormalizeDOI(id)
	}
	return shortID(id)
}

// shortID extracts the short ID from full OpenAlex URLs. Stored identifiers
// are lower-cased, so the entity letter is restored here.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(strings.ToLower(id), openAlexIDPrefix) {
		id = id[len(openAlexIDPrefix):]
	}
	return strings.ToUpper(strings.TrimSpace(id))
}
