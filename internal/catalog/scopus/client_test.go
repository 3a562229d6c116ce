package scopus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
)

const searchEntryJSON = `{
	"dc:identifier": "SCOPUS_ID:85012345678",
	"eid": "2-s2.0-85012345678",
	"prism:doi": "10.1016/J.CELL.2024.01.001",
	"dc:title": "  Deep learning for protein folding ",
	"dc:description": "An abstract.",
	"prism:publicationName": "Cell",
	"prism:volume": "187",
	"prism:issueIdentifier": "2",
	"prism:pageRange": "100-110",
	"prism:coverDate": "2024-01-15",
	"prism:coverDisplayDate": "January 2024",
	"citedby-count": "42",
	"subtype": "ar",
	"subtypeDescription": "Article",
	"openaccessFlag": true,
	"authkeywords": "protein folding | deep learning |  ",
	"fund-sponsor": "National Institute for Health Research",
	"link": [
		{"@ref": "self", "@href": "https://api.elsevier.com/content/abstract/scopus_id/85012345678"},
		{"@ref": "scopus", "@href": "https://www.scopus.com/inward/record.uri?eid=2-s2.0-85012345678"}
	],
	"affiliation": [
		{"afid": "60000001", "affilname": "University of Oxford", "affiliation-city": "Oxford", "affiliation-country": "United Kingdom"},
		{"afid": "60000002", "affilname": "MIT", "affiliation-city": "Cambridge", "affiliation-country": "United States"}
	],
	"author": [
		{"@seq": "1", "authid": "7004212771", "authname": "Smith J.", "given-name": "John", "surname": "Smith", "initials": "J.", "orcid": "https://orcid.org/0000-0002-1825-0097",
		 "afid": [{"@_fa": "true", "$": "60000001"}, {"@_fa": "true", "$": "60000002"}]},
		{"@seq": "2", "authid": "57190000000", "authname": "Doe A.", "given-name": "Ann", "surname": "Doe",
		 "afid": {"@_fa": "true", "$": "60000002"}}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{BaseURL: server.URL, APIKey: "test-key", Enabled: true, MaxResults: 2}
	httpClient := catalog.NewHTTPClient(catalog.HTTPClientConfig{
		Catalog:      domain.CatalogScopus,
		RateLimit:    100,
		BurstSize:    10,
		MaxRetries:   1,
		RetryDelay:   10 * time.Millisecond,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
	})
	return NewWithHTTPClient(cfg, httpClient), server
}

func TestClient_FetchPublication(t *testing.T) {
	var gotQuery, gotKey string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.Header.Get(apiKeyHeader)
		assert.Equal(t, "COMPLETE", r.URL.Query().Get("view"))
		w.Write([]byte(`{"search-results": {"opensearch:totalResults": "1", "entry": [` + searchEntryJSON + `]}}`))
	})

	pub, err := client.FetchPublication(context.Background(), "https://doi.org/10.1016/J.CELL.2024.01.001")
	require.NoError(t, err)

	assert.Equal(t, "DOI(10.1016/j.cell.2024.01.001)", gotQuery)
	assert.Equal(t, "test-key", gotKey)

	assert.Equal(t, domain.CatalogScopus, pub.Catalog)
	assert.Equal(t, "85012345678", pub.CatalogIdentifier)
	assert.Equal(t, "10.1016/j.cell.2024.01.001", pub.NormalizedDOI())
	assert.Equal(t, "Deep learning for protein folding", pub.Title)
	assert.Equal(t, "Cell", pub.JournalName)
	assert.Equal(t, "ar", pub.SubtypeCode)
	assert.Equal(t, "Article", pub.SubtypeDescription)
	assert.Equal(t, 42, pub.CitedByCount)
	assert.True(t, pub.IsOpenAccess)
	assert.Equal(t, []string{"protein folding", "deep learning"}, pub.Keywords)
	assert.Equal(t, []string{"National Institute for Health Research"}, pub.Sponsors)
	assert.Contains(t, pub.Href, "scopus.com")
	require.NotNil(t, pub.CoverDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *pub.CoverDate)
	assert.Equal(t, [3]int{2024, 1, 0}, [3]int{pub.Year, pub.Month, pub.Day})
	assert.NotEmpty(t, pub.Raw)

	require.Len(t, pub.Authors, 2)
	first := pub.Authors[0]
	assert.Equal(t, "7004212771", first.CatalogIdentifier)
	assert.Equal(t, "0000-0002-1825-0097", first.ORCID)
	require.Len(t, first.Affiliations, 2)
	assert.Equal(t, "University of Oxford", first.Affiliations[0].Name)
	assert.Equal(t, "Oxford", first.Affiliations[0].City)

	second := pub.Authors[1]
	require.Len(t, second.Affiliations, 1)
	assert.Equal(t, "60000002", second.Affiliations[0].CatalogIdentifier)
	assert.Equal(t, "MIT", second.Affiliations[0].Name)
}

func TestClient_FetchPublicationQueries(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"85012345678", "SCOPUS-ID(85012345678)"},
		{"SCOPUS_ID:85012345678", "SCOPUS-ID(85012345678)"},
		{"2-s2.0-85012345678", "EID(2-s2.0-85012345678)"},
		{"10.1/abc", "DOI(10.1/abc)"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			var got string
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Query().Get("query")
				w.Write([]byte(`{"search-results": {"opensearch:totalResults": "0", "entry": [{"error": "Result set was empty"}]}}`))
			})

			_, err := client.FetchPublication(context.Background(), tt.id)
			assert.True(t, errors.Is(err, domain.ErrNotFound))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_FetchAuthorPublicationsPaginates(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "AU-ID(7004212771)", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))

		entry := func(id string) string {
			return strings.Replace(searchEntryJSON, "85012345678", id, 1)
		}
		switch r.URL.Query().Get("start") {
		case "":
			w.Write([]byte(`{"search-results": {"opensearch:totalResults": "3", "entry": [` + entry("1") + `,` + entry("2") + `]}}`))
		case "2":
			w.Write([]byte(`{"search-results": {"opensearch:totalResults": "3", "entry": [` + entry("3") + `]}}`))
		default:
			t.Errorf("unexpected start %q", r.URL.Query().Get("start"))
		}
	})

	pubs, err := client.FetchAuthorPublications(context.Background(), "7004212771")
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	assert.Equal(t, "1", pubs[0].CatalogIdentifier)
	assert.Equal(t, "3", pubs[2].CatalogIdentifier)
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_FetchAuthor(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, authorPath+"7004212771", r.URL.Path)
		assert.Equal(t, "ENHANCED", r.URL.Query().Get("view"))
		w.Write([]byte(`{"author-retrieval-response": [{
			"coredata": {"dc:identifier": "AUTHOR_ID:7004212771", "orcid": "0000-0002-1825-0097",
				"document-count": "120", "cited-by-count": "3000", "citation-count": "4100",
				"link": [{"@rel": "scopus-author", "@href": "https://www.scopus.com/authid/detail.uri?authorId=7004212771"}]},
			"h-index": "25",
			"author-profile": {
				"preferred-name": {"given-name": "John", "surname": "Smith", "initials": "J."},
				"affiliation-current": {"affiliation": {"@affiliation-id": "60000001",
					"ip-doc": {"afdispname": "University of Oxford", "address": {"address-part": "Wellington Square", "city": "Oxford", "country": "United Kingdom"}}}}
			}
		}]}`))
	})

	author, err := client.FetchAuthor(context.Background(), "7004212771")
	require.NoError(t, err)

	assert.Equal(t, "7004212771", author.CatalogIdentifier)
	assert.Equal(t, "John Smith", author.DisplayName)
	assert.Equal(t, 120, author.DocumentCount)
	assert.Equal(t, 4100, author.CitationCount)
	assert.Equal(t, 25, author.HIndex)
	assert.Contains(t, author.Href, "authorId=7004212771")
	require.Len(t, author.Affiliations, 1)
	assert.Equal(t, "Wellington Square", author.Affiliations[0].Address)
}

func TestClient_FetchAuthorNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchAuthor(context.Background(), "1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestClient_FetchAuthorRateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchAuthor(context.Background(), "1")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestClient_SearchSimilarAuthors(t *testing.T) {
	t.Run("by ORCID", func(t *testing.T) {
		var got string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, authorSearchPath, r.URL.Path)
			got = r.URL.Query().Get("query")
			w.Write([]byte(`{"search-results": {"entry": [
				{"dc:identifier": "AUTHOR_ID:7004212771", "orcid": "0000-0002-1825-0097", "document-count": "12",
				 "preferred-name": {"given-name": "John", "surname": "Smith"},
				 "affiliation-current": {"affiliation-id": "60000001", "affiliation-name": "University of Oxford"}}
			]}}`))
		})

		authors, err := client.SearchSimilarAuthors(context.Background(), "https://orcid.org/0000-0002-1825-0097")
		require.NoError(t, err)
		assert.Equal(t, "ORCID(0000-0002-1825-0097)", got)
		require.Len(t, authors, 1)
		assert.Equal(t, "7004212771", authors[0].CatalogIdentifier)
		assert.Equal(t, 12, authors[0].DocumentCount)
		require.Len(t, authors[0].Affiliations, 1)
		assert.Equal(t, "60000001", authors[0].Affiliations[0].CatalogIdentifier)
	})

	t.Run("by name skips empty result marker", func(t *testing.T) {
		var got string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			got = r.URL.Query().Get("query")
			w.Write([]byte(`{"search-results": {"entry": [{"error": "Result set was empty"}]}}`))
		})

		authors, err := client.SearchSimilarAuthors(context.Background(), "Marie Curie")
		require.NoError(t, err)
		assert.Empty(t, authors)
		assert.Equal(t, "AUTHLASTNAME(Curie) AND AUTHFIRST(Marie)", got)
	})

	t.Run("empty name is invalid", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.SearchSimilarAuthors(context.Background(), "   ")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestClient_FetchAffiliation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, affiliationPath+"60000001", r.URL.Path)
		w.Write([]byte(`{"affiliation-retrieval-response": {
			"coredata": {"dc:identifier": "AFFILIATION_ID:60000001"},
			"affiliation-name": "University of Oxford", "address": "Wellington Square",
			"city": "Oxford", "country": "United Kingdom"}}`))
	})

	af, err := client.FetchAffiliation(context.Background(), "60000001")
	require.NoError(t, err)
	assert.Equal(t, "60000001", af.CatalogIdentifier)
	assert.Equal(t, "University of Oxford", af.Name)
	assert.Equal(t, "United Kingdom", af.Country)
	assert.Contains(t, string(af.Raw), "Wellington Square")
}

func TestClient_FetchInstitution(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, scivalInstitutionPath+"508076", r.URL.Path)
		w.Write([]byte(`{"institution": {"id": 508076, "name": "University of Oxford", "countryCode": "GBR", "sector": "Academic"}}`))
	})

	inst, err := client.FetchInstitution(context.Background(), "508076")
	require.NoError(t, err)
	assert.Equal(t, "508076", inst.CatalogIdentifier)
	assert.Equal(t, "GBR", inst.CountryCode)
	assert.Equal(t, "Academic", inst.Sector)
}

func TestClient_FetchPublicationInstitutions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case searchPath:
			w.Write([]byte(`{"search-results": {"opensearch:totalResults": "1", "entry": [` + searchEntryJSON + `]}}`))
		case scivalPublicationPath + "85012345678":
			w.Write([]byte(`{"publication": {"id": 85012345678, "institutions": [
				{"id": 508076, "name": "University of Oxford", "countryCode": "GBR"},
				{"id": 508077, "name": "MIT", "countryCode": "USA"}
			]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	insts, err := client.FetchPublicationInstitutions(context.Background(), "10.1016/j.cell.2024.01.001")
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "508077", insts[1].CatalogIdentifier)
	assert.Equal(t, domain.CatalogScopus, insts[1].Catalog)
}

func TestClient_IsEnabled(t *testing.T) {
	assert.False(t, New(Config{Enabled: true}).IsEnabled())
	assert.False(t, New(Config{APIKey: "k"}).IsEnabled())
	assert.True(t, New(Config{Enabled: true, APIKey: "k"}).IsEnabled())
}

func TestParseDisplayDate(t *testing.T) {
	tests := []struct {
		in               string
		year, month, day int
	}{
		{"15 January 2024", 2024, 1, 15},
		{"January 2024", 2024, 1, 0},
		{"2024", 2024, 0, 0},
		{"Spring 2024", 0, 0, 0},
		{"", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			y, m, d := parseDisplayDate(tt.in)
			assert.Equal(t, [3]int{tt.year, tt.month, tt.day}, [3]int{y, m, d})
		})
	}
}
