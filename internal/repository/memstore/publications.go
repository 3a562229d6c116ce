package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

type publicationRepo struct{ s *Store }

func (r *publicationRepo) FindByDOIs(_ context.Context, dois []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(dois)
	out := map[string]int64{}
	for id, p := range r.s.read().publications {
		if p.DOI != nil && want[*p.DOI] {
			out[*p.DOI] = id
		}
	}
	return out, nil
}

func (r *publicationRepo) CreateMany(_ context.Context, dois []*string) ([]repository.Created, error) {
	defer r.s.lock()()
	results := make([]repository.Created, len(dois))
	for i, doi := range dois {
		if doi != nil && *doi != "" {
			if id, ok := r.findByDOILocked(*doi); ok {
				results[i] = repository.Created{ID: id}
				continue
			}
		}
		id := r.s.db.allocID()
		p := domain.Publication{
			ID:        id,
			Status:    domain.PublicationStatusUnknown,
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		if doi != nil && *doi != "" {
			value := *doi
			p.DOI = &value
		}
		r.s.write().publications[id] = p
		results[i] = repository.Created{ID: id, Inserted: true}
	}
	return results, nil
}

func (r *publicationRepo) findByDOILocked(doi string) (int64, bool) {
	for id, p := range r.s.read().publications {
		if p.DOI != nil && *p.DOI == doi {
			return id, true
		}
	}
	return 0, false
}

func (r *publicationRepo) Get(_ context.Context, id int64) (*domain.Publication, error) {
	defer r.s.lock()()
	p, ok := r.s.read().publications[id]
	if !ok {
		return nil, notFound("publication", id)
	}
	return &p, nil
}

func (r *publicationRepo) UpdateDerived(_ context.Context, p *domain.Publication) error {
	defer r.s.lock()()
	row, ok := r.s.read().publications[p.ID]
	if !ok {
		return notFound("publication", p.ID)
	}
	row.Reference, row.IsPreprint, row.Status = p.Reference, p.IsPreprint, p.Status
	row.InitialisedAt = p.InitialisedAt
	row.UpdatedAt = now()
	r.s.write().publications[p.ID] = row
	return nil
}

func (r *publicationRepo) SetValidationHistoric(_ context.Context, id int64, historic bool) error {
	defer r.s.lock()()
	row, ok := r.s.read().publications[id]
	if !ok {
		return notFound("publication", id)
	}
	row.ValidationHistoric = historic
	row.UpdatedAt = now()
	r.s.write().publications[id] = row
	return nil
}

func (r *publicationRepo) DeleteUnused(_ context.Context) (int64, error) {
	defer r.s.lock()()
	used := map[int64]bool{}
	for _, cp := range r.s.read().catalogPublications {
		used[cp.PublicationID] = true
	}
	var deleted int64
	for id := range r.s.read().publications {
		if used[id] {
			continue
		}
		st := r.s.write()
		delete(st.publications, id)
		delete(st.pubInstitutions, id)
		for folderID, pubs := range st.folderPublications {
			st.folderPublications[folderID] = removeID(pubs, id)
		}
		deleted++
	}
	return deleted, nil
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type catalogPublicationRepo struct{ s *Store }

func (r *catalogPublicationRepo) FindPublicationIDs(_ context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(identifiers)
	out := map[string]int64{}
	for _, cp := range r.s.read().catalogPublications {
		if cp.Catalog == catalog && want[cp.CatalogIdentifier] {
			out[cp.CatalogIdentifier] = cp.PublicationID
		}
	}
	return out, nil
}

func (r *catalogPublicationRepo) Get(_ context.Context, id int64) (*domain.CatalogPublication, error) {
	defer r.s.lock()()
	cp, ok := r.s.read().catalogPublications[id]
	if !ok {
		return nil, notFound("catalog_publication", id)
	}
	return &cp, nil
}

func (r *catalogPublicationRepo) GetByReference(_ context.Context, ref domain.CatalogReference) (*domain.CatalogPublication, error) {
	defer r.s.lock()()
	for _, cp := range r.s.read().catalogPublications {
		if cp.Catalog == ref.Catalog && cp.CatalogIdentifier == ref.Identifier {
			cp := cp
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("catalog_publication", ref.String())
}

func (r *catalogPublicationRepo) Create(_ context.Context, cp *domain.CatalogPublication) (repository.Created, error) {
	if cp == nil || cp.CatalogIdentifier == "" {
		return repository.Created{}, domain.NewValidationError("catalog_identifier", "catalog publication has no identifier")
	}

	defer r.s.lock()()
	for id, row := range r.s.read().catalogPublications {
		if row.Catalog == cp.Catalog && row.CatalogIdentifier == cp.CatalogIdentifier {
			cp.ID = id
			return repository.Created{ID: id}, nil
		}
	}
	if _, ok := r.s.read().publications[cp.PublicationID]; !ok {
		return repository.Created{}, notFound("publication", cp.PublicationID)
	}

	id := r.s.db.allocID()
	r.s.write().catalogPublications[id] = domain.CatalogPublication{
		ID:                id,
		Catalog:           cp.Catalog,
		CatalogIdentifier: cp.CatalogIdentifier,
		PublicationID:     cp.PublicationID,
		CreatedAt:         now(),
		UpdatedAt:         now(),
	}
	cp.ID = id
	return repository.Created{ID: id, Inserted: true}, nil
}

func (r *catalogPublicationRepo) Update(_ context.Context, cp *domain.CatalogPublication) error {
	defer r.s.lock()()
	row, ok := r.s.read().catalogPublications[cp.ID]
	if !ok {
		return notFound("catalog_publication", cp.ID)
	}
	row.DOI, row.Title, row.Abstract = cp.DOI, cp.Title, cp.Abstract
	row.Volume, row.Issue, row.Pages, row.FundingText = cp.Volume, cp.Issue, cp.Pages, cp.FundingText
	row.IsOpenAccess, row.CitedByCount, row.Href = cp.IsOpenAccess, cp.CitedByCount, cp.Href
	row.CoverDate, row.PeriodStart, row.PeriodEnd = cp.CoverDate, cp.PeriodStart, cp.PeriodEnd
	row.JournalID, row.SubtypeID = cp.JournalID, cp.SubtypeID
	row.UpdatedAt = now()
	r.s.write().catalogPublications[cp.ID] = row
	return nil
}

func (r *catalogPublicationRepo) MarkRefreshed(_ context.Context, id int64, at time.Time) error {
	defer r.s.lock()()
	row, ok := r.s.read().catalogPublications[id]
	if !ok {
		return notFound("catalog_publication", id)
	}
	row.LastRefreshedAt = &at
	r.s.write().catalogPublications[id] = row
	return nil
}

func (r *catalogPublicationRepo) ListByPublication(_ context.Context, publicationID int64) ([]*domain.CatalogPublication, error) {
	defer r.s.lock()()
	var out []*domain.CatalogPublication
	for _, cp := range r.s.read().catalogPublications {
		if cp.PublicationID == publicationID {
			cp := cp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *catalogPublicationRepo) ExistsForPublication(_ context.Context, publicationID int64, catalog string) (bool, error) {
	defer r.s.lock()()
	for _, cp := range r.s.read().catalogPublications {
		if cp.PublicationID == publicationID && cp.Catalog == catalog {
			return true, nil
		}
	}
	return false, nil
}

func (r *catalogPublicationRepo) ReplaceSponsors(_ context.Context, id int64, sponsorIDs []int64) error {
	defer r.s.lock()()
	r.s.write().cpSponsors[id] = appendUnique(nil, sponsorIDs...)
	return nil
}

func (r *catalogPublicationRepo) ReplaceKeywords(_ context.Context, id int64, keywordIDs []int64) error {
	defer r.s.lock()()
	r.s.write().cpKeywords[id] = appendUnique(nil, keywordIDs...)
	return nil
}

func (r *catalogPublicationRepo) ReplaceAuthorships(_ context.Context, id int64, authorships []*domain.Authorship) error {
	defer r.s.lock()()
	st := r.s.write()
	for rowID, a := range st.authorships {
		if a.CatalogPublicationID == id {
			delete(st.authorships, rowID)
		}
	}
	for _, a := range authorships {
		a.ID = r.s.db.allocID()
		a.CatalogPublicationID = id
		row := *a
		row.AffiliationIDs = appendUnique(nil, a.AffiliationIDs...)
		st.authorships[a.ID] = row
	}
	return nil
}

func (r *catalogPublicationRepo) ListAuthorships(_ context.Context, id int64) ([]*domain.Authorship, error) {
	defer r.s.lock()()
	return r.authorshipsLocked(id), nil
}

func (r *catalogPublicationRepo) authorshipsLocked(id int64) []*domain.Authorship {
	var out []*domain.Authorship
	for _, a := range r.s.read().authorships {
		if a.CatalogPublicationID != id {
			continue
		}
		a := a
		a.AffiliationIDs = append([]int64(nil), a.AffiliationIDs...)
		sort.Slice(a.AffiliationIDs, func(i, j int) bool { return a.AffiliationIDs[i] < a.AffiliationIDs[j] })
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func (r *catalogPublicationRepo) ListAuthorNames(_ context.Context, id int64) ([]string, error) {
	defer r.s.lock()()
	var names []string
	for _, a := range r.authorshipsLocked(id) {
		if src, ok := r.s.read().sources[a.SourceID]; ok {
			names = append(names, src.DisplayName)
		}
	}
	return names, nil
}

type rawDataRepo struct{ s *Store }

func (r *rawDataRepo) Insert(_ context.Context, raw *domain.RawData) error {
	defer r.s.lock()()
	row := *raw
	if len(row.Data) == 0 {
		row.Data = []byte("{}")
	}
	row.ID = r.s.db.allocID()
	row.CreatedAt = now()
	st := r.s.write()
	st.rawData = append(st.rawData, row)
	raw.ID = row.ID
	raw.CreatedAt = row.CreatedAt
	return nil
}

type folderRepo struct{ s *Store }

func (r *folderRepo) ListAutofill(_ context.Context) ([]*domain.Folder, error) {
	defer r.s.lock()()
	var out []*domain.Folder
	for _, f := range r.s.read().folders {
		if f.Autofill {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *folderRepo) AttachMatching(_ context.Context, folder *domain.Folder, from, to time.Time) (int64, error) {
	defer r.s.lock()()
	st := r.s.read()

	matching := map[int64]bool{}
	for _, a := range st.authorships {
		src, ok := st.sources[a.SourceID]
		if !ok || src.AcademicID == nil || *src.AcademicID != folder.AcademicID {
			continue
		}
		cp, ok := st.catalogPublications[a.CatalogPublicationID]
		if !ok || cp.PeriodStart == nil || cp.PeriodEnd == nil {
			continue
		}
		if domain.PeriodOverlaps(cp.PeriodStart, cp.PeriodEnd, from, to) {
			matching[cp.PublicationID] = true
		}
	}

	var attached int64
	for pubID := range matching {
		if containsID(st.folderPublications[folder.ID], pubID) {
			continue
		}
		w := r.s.write()
		w.folderPublications[folder.ID] = append(w.folderPublications[folder.ID], pubID)
		attached++
	}
	return attached, nil
}
