package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

type affiliationRepo struct{ s *Store }

func (r *affiliationRepo) FindByIdentifiers(_ context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(identifiers)
	out := map[string]int64{}
	for id, a := range r.s.read().affiliations {
		if a.Catalog == catalog && want[a.CatalogIdentifier] {
			out[a.CatalogIdentifier] = id
		}
	}
	return out, nil
}

func (r *affiliationRepo) BulkGetOrCreate(_ context.Context, affiliations []*domain.Affiliation) ([]repository.Created, error) {
	for i, a := range affiliations {
		if a == nil || strings.TrimSpace(a.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("affiliation at index %d has no identifier", i))
		}
	}

	defer r.s.lock()()
	results := make([]repository.Created, len(affiliations))
	for i, a := range affiliations {
		var existing int64
		for id, row := range r.s.read().affiliations {
			if row.Catalog == a.Catalog && row.CatalogIdentifier == a.CatalogIdentifier {
				existing = id
				break
			}
		}
		if existing != 0 {
			a.ID = existing
			results[i] = repository.Created{ID: existing}
			continue
		}
		id := r.s.db.allocID()
		row := *a
		row.ID = id
		row.CreatedAt, row.UpdatedAt = now(), now()
		r.s.write().affiliations[id] = row
		a.ID = id
		results[i] = repository.Created{ID: id, Inserted: true}
	}
	return results, nil
}

func (r *affiliationRepo) Get(_ context.Context, id int64) (*domain.Affiliation, error) {
	defer r.s.lock()()
	a, ok := r.s.read().affiliations[id]
	if !ok {
		return nil, notFound("affiliation", id)
	}
	return &a, nil
}

func (r *affiliationRepo) Update(_ context.Context, a *domain.Affiliation) error {
	defer r.s.lock()()
	row, ok := r.s.read().affiliations[a.ID]
	if !ok {
		return notFound("affiliation", a.ID)
	}
	row.Name, row.Address, row.City, row.Country = a.Name, a.Address, a.City, a.Country
	row.LastRefreshedAt = a.LastRefreshedAt
	row.UpdatedAt = now()
	r.s.write().affiliations[a.ID] = row
	return nil
}

type sourceRepo struct{ s *Store }

func (r *sourceRepo) FindByIdentifiers(_ context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(identifiers)
	out := map[string]int64{}
	for id, src := range r.s.read().sources {
		if src.Catalog == catalog && want[src.CatalogIdentifier] {
			out[src.CatalogIdentifier] = id
		}
	}
	return out, nil
}

func (r *sourceRepo) BulkGetOrCreate(_ context.Context, sources []*domain.Source) ([]repository.Created, error) {
	for i, src := range sources {
		if src == nil || strings.TrimSpace(src.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("source at index %d has no identifier", i))
		}
	}

	defer r.s.lock()()
	results := make([]repository.Created, len(sources))
	for i, src := range sources {
		var existing int64
		for id, row := range r.s.read().sources {
			if row.Catalog == src.Catalog && row.CatalogIdentifier == src.CatalogIdentifier {
				existing = id
				break
			}
		}
		if existing != 0 {
			src.ID = existing
			results[i] = repository.Created{ID: existing}
			continue
		}
		id := r.s.db.allocID()
		row := domain.Source{
			ID: id, Catalog: src.Catalog, CatalogIdentifier: src.CatalogIdentifier,
			DisplayName: src.DisplayName, FirstName: src.FirstName, LastName: src.LastName,
			Initials: src.Initials, ORCID: src.ORCID, Href: src.Href,
			CitationCount: src.CitationCount, DocumentCount: src.DocumentCount, HIndex: src.HIndex,
			CreatedAt: now(), UpdatedAt: now(),
		}
		r.s.write().sources[id] = row
		src.ID = id
		results[i] = repository.Created{ID: id, Inserted: true}
	}
	return results, nil
}

func (r *sourceRepo) Get(_ context.Context, id int64) (*domain.Source, error) {
	defer r.s.lock()()
	src, ok := r.s.read().sources[id]
	if !ok {
		return nil, notFound("source", id)
	}
	return &src, nil
}

func (r *sourceRepo) ListByAcademic(_ context.Context, academicID int64) ([]*domain.Source, error) {
	defer r.s.lock()()
	return r.filterLocked(func(src domain.Source) bool {
		return src.AcademicID != nil && *src.AcademicID == academicID
	}), nil
}

func (r *sourceRepo) ListByORCID(_ context.Context, orcid string) ([]*domain.Source, error) {
	defer r.s.lock()()
	return r.filterLocked(func(src domain.Source) bool { return src.ORCID == orcid }), nil
}

func (r *sourceRepo) filterLocked(keep func(domain.Source) bool) []*domain.Source {
	var out []*domain.Source
	for _, src := range r.s.read().sources {
		if keep(src) {
			src := src
			out = append(out, &src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *sourceRepo) Update(_ context.Context, src *domain.Source) error {
	defer r.s.lock()()
	row, ok := r.s.read().sources[src.ID]
	if !ok {
		return notFound("source", src.ID)
	}
	row.DisplayName, row.FirstName, row.LastName = src.DisplayName, src.FirstName, src.LastName
	row.Initials, row.ORCID, row.Href = src.Initials, src.ORCID, src.Href
	row.CitationCount, row.DocumentCount, row.HIndex = src.CitationCount, src.DocumentCount, src.HIndex
	row.Error, row.ErrorMessage, row.LastFetchedAt = src.Error, src.ErrorMessage, src.LastFetchedAt
	row.UpdatedAt = now()
	r.s.write().sources[src.ID] = row
	return nil
}

func (r *sourceRepo) SetStatus(_ context.Context, id int64, academicID *int64, status domain.SourceStatus) error {
	defer r.s.lock()()
	row, ok := r.s.read().sources[id]
	if !ok {
		return notFound("source", id)
	}
	if academicID != nil {
		if _, ok := r.s.read().academics[*academicID]; !ok {
			return domain.NewValidationError("academic_id", "academic does not exist")
		}
	}
	row.AcademicID = academicID
	row.Status = status
	row.UpdatedAt = now()
	r.s.write().sources[id] = row
	return nil
}

func (r *sourceRepo) ClaimPotential(_ context.Context, ids []int64, academicID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	defer r.s.lock()()
	if _, ok := r.s.read().academics[academicID]; !ok {
		return 0, domain.NewValidationError("academic_id", "academic does not exist")
	}
	var claimed int64
	for _, id := range ids {
		row, ok := r.s.read().sources[id]
		if !ok || row.AcademicID != nil {
			continue
		}
		owner := academicID
		row.AcademicID = &owner
		row.Status = domain.SourceStatusPotential
		row.UpdatedAt = now()
		r.s.write().sources[id] = row
		claimed++
	}
	return claimed, nil
}

func (r *sourceRepo) MarkError(_ context.Context, id int64, message string, at time.Time) error {
	defer r.s.lock()()
	row, ok := r.s.read().sources[id]
	if !ok {
		return notFound("source", id)
	}
	row.Error = true
	row.ErrorMessage = message
	row.LastFetchedAt = &at
	row.UpdatedAt = at
	r.s.write().sources[id] = row
	return nil
}

func (r *sourceRepo) ReplaceAffiliations(_ context.Context, sourceID int64, affiliationIDs []int64) error {
	defer r.s.lock()()
	for _, id := range affiliationIDs {
		if _, ok := r.s.read().affiliations[id]; !ok {
			return domain.NewValidationError("affiliation_id", "affiliation does not exist")
		}
	}
	r.s.write().sourceAffiliations[sourceID] = appendUnique(nil, affiliationIDs...)
	return nil
}

type academicRepo struct{ s *Store }

func (r *academicRepo) Get(_ context.Context, id int64) (*domain.Academic, error) {
	defer r.s.lock()()
	a, ok := r.s.read().academics[id]
	if !ok {
		return nil, notFound("academic", id)
	}
	return &a, nil
}

func (r *academicRepo) ListTrackedIDs(_ context.Context) ([]int64, error) {
	defer r.s.lock()()
	var ids []int64
	for id, a := range r.s.read().academics {
		if a.Tracked {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type institutionRepo struct{ s *Store }

func (r *institutionRepo) BulkGetOrCreate(_ context.Context, institutions []*domain.Institution) ([]repository.Created, error) {
	for i, inst := range institutions {
		if inst == nil || strings.TrimSpace(inst.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("institution at index %d has no identifier", i))
		}
	}

	defer r.s.lock()()
	results := make([]repository.Created, len(institutions))
	for i, inst := range institutions {
		var existing int64
		for id, row := range r.s.read().institutions {
			if row.Catalog == inst.Catalog && row.CatalogIdentifier == inst.CatalogIdentifier {
				existing = id
				break
			}
		}
		if existing != 0 {
			inst.ID = existing
			results[i] = repository.Created{ID: existing}
			continue
		}
		id := r.s.db.allocID()
		row := *inst
		row.ID = id
		row.CreatedAt, row.UpdatedAt = now(), now()
		r.s.write().institutions[id] = row
		inst.ID = id
		results[i] = repository.Created{ID: id, Inserted: true}
	}
	return results, nil
}

func (r *institutionRepo) Get(_ context.Context, id int64) (*domain.Institution, error) {
	defer r.s.lock()()
	inst, ok := r.s.read().institutions[id]
	if !ok {
		return nil, notFound("institution", id)
	}
	return &inst, nil
}

func (r *institutionRepo) Update(_ context.Context, inst *domain.Institution) error {
	defer r.s.lock()()
	row, ok := r.s.read().institutions[inst.ID]
	if !ok {
		return notFound("institution", inst.ID)
	}
	row.Name, row.Sector, row.CountryCode = inst.Name, inst.Sector, inst.CountryCode
	row.LastRefreshedAt = inst.LastRefreshedAt
	row.UpdatedAt = now()
	r.s.write().institutions[inst.ID] = row
	return nil
}

func (r *institutionRepo) LinkPublication(_ context.Context, publicationID int64, institutionIDs []int64) error {
	if len(institutionIDs) == 0 {
		return nil
	}

	defer r.s.lock()()
	if _, ok := r.s.read().publications[publicationID]; !ok {
		return notFound("publication", publicationID)
	}
	st := r.s.write()
	st.pubInstitutions[publicationID] = appendUnique(st.pubInstitutions[publicationID], institutionIDs...)
	return nil
}
