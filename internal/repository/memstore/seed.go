package memstore

import (
	"sort"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// SeedAcademic inserts a committed academic and returns its ID.
func (db *DB) SeedAcademic(a domain.Academic) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	a.ID = db.allocID()
	a.CreatedAt, a.UpdatedAt = now(), now()
	db.state.academics[a.ID] = a
	return a.ID
}

// SeedSource inserts a committed source and returns its ID.
func (db *DB) SeedSource(s domain.Source) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	s.ID = db.allocID()
	s.CreatedAt, s.UpdatedAt = now(), now()
	db.state.sources[s.ID] = s
	return s.ID
}

// SeedFolder inserts a committed folder and returns its ID.
func (db *DB) SeedFolder(f domain.Folder) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	f.ID = db.allocID()
	f.CreatedAt = now()
	db.state.folders[f.ID] = f
	return f.ID
}

// SeedJob inserts a committed job row as given and returns its ID.
func (db *DB) SeedJob(j domain.Job) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	j.ID = db.allocID()
	j.CreatedAt, j.UpdatedAt = now(), now()
	if j.RetryUnit == "" {
		j.RetryUnit = domain.RetryUnitDays
	}
	db.state.jobs[j.ID] = j
	return j.ID
}

// Jobs returns every committed or pending job row ordered by ID.
func (db *DB) Jobs() []domain.Job {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.jobs, func(j domain.Job) int64 { return j.ID })
}

// Publications returns every publication ordered by ID.
func (db *DB) Publications() []domain.Publication {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.publications, func(p domain.Publication) int64 { return p.ID })
}

// CatalogPublications returns every catalog publication ordered by ID.
func (db *DB) CatalogPublications() []domain.CatalogPublication {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.catalogPublications, func(c domain.CatalogPublication) int64 { return c.ID })
}

// Sources returns every source ordered by ID.
func (db *DB) Sources() []domain.Source {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.sources, func(s domain.Source) int64 { return s.ID })
}

// Affiliations returns every affiliation ordered by ID.
func (db *DB) Affiliations() []domain.Affiliation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.affiliations, func(a domain.Affiliation) int64 { return a.ID })
}

// Institutions returns every institution ordered by ID.
func (db *DB) Institutions() []domain.Institution {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.institutions, func(i domain.Institution) int64 { return i.ID })
}

// Journals returns every journal ordered by ID.
func (db *DB) Journals() []domain.Journal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.journals, func(j domain.Journal) int64 { return j.ID })
}

// Keywords returns every keyword ordered by ID.
func (db *DB) Keywords() []domain.Keyword {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.keywords, func(k domain.Keyword) int64 { return k.ID })
}

// Sponsors returns every sponsor ordered by ID.
func (db *DB) Sponsors() []domain.Sponsor {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedValues(db.state.sponsors, func(s domain.Sponsor) int64 { return s.ID })
}

// KeywordIDs returns the keyword set of a catalog publication.
func (db *DB) KeywordIDs(catalogPublicationID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64(nil), db.state.cpKeywords[catalogPublicationID]...)
}

// SponsorIDs returns the sponsor set of a catalog publication.
func (db *DB) SponsorIDs(catalogPublicationID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64(nil), db.state.cpSponsors[catalogPublicationID]...)
}

// SourceAffiliationIDs returns the current affiliations of a source.
func (db *DB) SourceAffiliationIDs(sourceID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64(nil), db.state.sourceAffiliations[sourceID]...)
}

// Authorships returns the authorship rows of a catalog publication ordered
// by ordinal.
func (db *DB) Authorships(catalogPublicationID int64) []domain.Authorship {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.Authorship
	for _, a := range db.state.authorships {
		if a.CatalogPublicationID == catalogPublicationID {
			a.AffiliationIDs = append([]int64(nil), a.AffiliationIDs...)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// PublicationInstitutionIDs returns the institutions linked to a publication.
func (db *DB) PublicationInstitutionIDs(publicationID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]int64(nil), db.state.pubInstitutions[publicationID]...)
}

// FolderPublicationIDs returns the publications attached to a folder.
func (db *DB) FolderPublicationIDs(folderID int64) []int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	ids := append([]int64(nil), db.state.folderPublications[folderID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RawData returns every raw data row in insertion order.
func (db *DB) RawData() []domain.RawData {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.RawData(nil), db.state.rawData...)
}

// OutboxEvents returns every outbox event in insertion order.
func (db *DB) OutboxEvents() []domain.OutboxEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.OutboxEvent(nil), db.state.outbox...)
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
