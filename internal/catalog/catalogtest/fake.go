// Package catalogtest provides an in-memory catalog.Adapter for tests.
package catalogtest

import (
	"context"
	"sync"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
)

var (
	_ catalog.Adapter             = (*Fake)(nil)
	_ catalog.InstitutionEnricher = (*Fake)(nil)
)

// Fake serves canned records keyed by identifier. Missing records yield
// *domain.NotFoundError. Err, when set, is returned by every call.
type Fake struct {
	Name     string
	Disabled bool
	Err      error

	Publications       map[string]*domain.PublicationData
	Authors            map[string]*domain.AuthorData
	AuthorPublications map[string][]*domain.PublicationData
	Affiliations       map[string]*domain.AffiliationData
	SimilarAuthors     map[string][]*domain.AuthorData
	Institutions       map[string]*domain.InstitutionData
	PubInstitutions    map[string][]*domain.InstitutionData

	mu    sync.Mutex
	calls []string
}

// New returns an empty fake for catalog name.
func New(name string) *Fake {
	return &Fake{
		Name:               name,
		Publications:       map[string]*domain.PublicationData{},
		Authors:            map[string]*domain.AuthorData{},
		AuthorPublications: map[string][]*domain.PublicationData{},
		Affiliations:       map[string]*domain.AffiliationData{},
		SimilarAuthors:     map[string][]*domain.AuthorData{},
		Institutions:       map[string]*domain.InstitutionData{},
		PubInstitutions:    map[string][]*domain.InstitutionData{},
	}
}

// Calls returns the recorded calls as "method:argument" strings.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(method, arg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method+":"+arg)
	f.mu.Unlock()
	return f.Err
}

func (f *Fake) Catalog() string { return f.Name }

func (f *Fake) IsEnabled() bool { return !f.Disabled }

func (f *Fake) FetchPublication(_ context.Context, id string) (*domain.PublicationData, error) {
	if err := f.record("FetchPublication", id); err != nil {
		return nil, err
	}
	if p, ok := f.Publications[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("publication", id)
}

func (f *Fake) FetchAuthor(_ context.Context, id string) (*domain.AuthorData, error) {
	if err := f.record("FetchAuthor", id); err != nil {
		return nil, err
	}
	if a, ok := f.Authors[id]; ok {
		return a, nil
	}
	return nil, domain.NewNotFoundError("author", id)
}

func (f *Fake) FetchAuthorPublications(_ context.Context, id string) ([]*domain.PublicationData, error) {
	if err := f.record("FetchAuthorPublications", id); err != nil {
		return nil, err
	}
	pubs, ok := f.AuthorPublications[id]
	if !ok {
		return nil, domain.NewNotFoundError("author", id)
	}
	return pubs, nil
}

func (f *Fake) FetchAffiliation(_ context.Context, id string) (*domain.AffiliationData, error) {
	if err := f.record("FetchAffiliation", id); err != nil {
		return nil, err
	}
	if a, ok := f.Affiliations[id]; ok {
		return a, nil
	}
	return nil, domain.NewNotFoundError("affiliation", id)
}

func (f *Fake) SearchSimilarAuthors(_ context.Context, query string) ([]*domain.AuthorData, error) {
	if err := f.record("SearchSimilarAuthors", query); err != nil {
		return nil, err
	}
	return f.SimilarAuthors[query], nil
}

func (f *Fake) FetchInstitution(_ context.Context, id string) (*domain.InstitutionData, error) {
	if err := f.record("FetchInstitution", id); err != nil {
		return nil, err
	}
	if i, ok := f.Institutions[id]; ok {
		return i, nil
	}
	return nil, domain.NewNotFoundError("institution", id)
}

func (f *Fake) FetchPublicationInstitutions(_ context.Context, doi string) ([]*domain.InstitutionData, error) {
	if err := f.record("FetchPublicationInstitutions", doi); err != nil {
		return nil, err
	}
	return f.PubInstitutions[doi], nil
}
