// Package memstore provides an in-memory repository.Store for tests of the
// reconciliation engine and the job runner.
//
// A DB holds committed state. Each Store begun from it takes a snapshot of
// that state before its first write; Rollback restores the snapshot and
// Commit discards it. Identifiers are allocated from one counter that, like
// a PostgreSQL sequence, is never rolled back.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

type state struct {
	journals            map[int64]domain.Journal
	subtypes            map[int64]domain.Subtype
	sponsors            map[int64]domain.Sponsor
	keywords            map[int64]domain.Keyword
	affiliations        map[int64]domain.Affiliation
	academics           map[int64]domain.Academic
	sources             map[int64]domain.Source
	sourceAffiliations  map[int64][]int64
	institutions        map[int64]domain.Institution
	publications        map[int64]domain.Publication
	catalogPublications map[int64]domain.CatalogPublication
	cpSponsors          map[int64][]int64
	cpKeywords          map[int64][]int64
	authorships         map[int64]domain.Authorship
	pubInstitutions     map[int64][]int64
	rawData             []domain.RawData
	folders             map[int64]domain.Folder
	folderPublications  map[int64][]int64
	jobs                map[int64]domain.Job
	outbox              []domain.OutboxEvent
}

func newState() *state {
	return &state{
		journals:            map[int64]domain.Journal{},
		subtypes:            map[int64]domain.Subtype{},
		sponsors:            map[int64]domain.Sponsor{},
		keywords:            map[int64]domain.Keyword{},
		affiliations:        map[int64]domain.Affiliation{},
		academics:           map[int64]domain.Academic{},
		sources:             map[int64]domain.Source{},
		sourceAffiliations:  map[int64][]int64{},
		institutions:        map[int64]domain.Institution{},
		publications:        map[int64]domain.Publication{},
		catalogPublications: map[int64]domain.CatalogPublication{},
		cpSponsors:          map[int64][]int64{},
		cpKeywords:          map[int64][]int64{},
		authorships:         map[int64]domain.Authorship{},
		pubInstitutions:     map[int64][]int64{},
		folders:             map[int64]domain.Folder{},
		folderPublications:  map[int64][]int64{},
		jobs:                map[int64]domain.Job{},
	}
}

func (s *state) clone() *state {
	c := &state{
		journals:            cloneMap(s.journals),
		subtypes:            cloneMap(s.subtypes),
		sponsors:            cloneMap(s.sponsors),
		keywords:            cloneMap(s.keywords),
		affiliations:        cloneMap(s.affiliations),
		academics:           cloneMap(s.academics),
		sources:             cloneMap(s.sources),
		sourceAffiliations:  cloneLinks(s.sourceAffiliations),
		institutions:        cloneMap(s.institutions),
		publications:        cloneMap(s.publications),
		catalogPublications: cloneMap(s.catalogPublications),
		cpSponsors:          cloneLinks(s.cpSponsors),
		cpKeywords:          cloneLinks(s.cpKeywords),
		authorships:         make(map[int64]domain.Authorship, len(s.authorships)),
		pubInstitutions:     cloneLinks(s.pubInstitutions),
		rawData:             append([]domain.RawData(nil), s.rawData...),
		folders:             cloneMap(s.folders),
		folderPublications:  cloneLinks(s.folderPublications),
		jobs:                cloneMap(s.jobs),
		outbox:              append([]domain.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.authorships {
		v.AffiliationIDs = append([]int64(nil), v.AffiliationIDs...)
		c.authorships[k] = v
	}
	return c
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLinks(m map[int64][]int64) map[int64][]int64 {
	out := make(map[int64][]int64, len(m))
	for k, v := range m {
		out[k] = append([]int64(nil), v...)
	}
	return out
}

// DB is the committed in-memory database.
type DB struct {
	mu     sync.Mutex
	state  *state
	nextID int64
}

// New creates an empty DB.
func New() *DB {
	return &DB{state: newState()}
}

// Compile-time interface verification.
var (
	_ repository.StoreFactory = (*DB)(nil)
	_ repository.Store        = (*Store)(nil)
)

// Begin opens a store over db.
func (db *DB) Begin(_ context.Context) (repository.Store, error) {
	return &Store{db: db}, nil
}

func (db *DB) allocID() int64 {
	db.nextID++
	return db.nextID
}

// Store is a unit of work over a DB.
type Store struct {
	db       *DB
	snapshot *state
	closed   bool
}

// write must be called with db.mu held before any mutation.
func (s *Store) write() *state {
	if s.snapshot == nil {
		s.snapshot = s.db.state.clone()
	}
	return s.db.state
}

func (s *Store) read() *state {
	return s.db.state
}

func (s *Store) lock() func() {
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) Journals() repository.JournalRepository       { return &journalRepo{s} }
func (s *Store) Subtypes() repository.SubtypeRepository       { return &subtypeRepo{s} }
func (s *Store) Sponsors() repository.SponsorRepository       { return &sponsorRepo{s} }
func (s *Store) Keywords() repository.KeywordRepository       { return &keywordRepo{s} }
func (s *Store) Affiliations() repository.AffiliationRepository { return &affiliationRepo{s} }
func (s *Store) Sources() repository.SourceRepository         { return &sourceRepo{s} }
func (s *Store) Academics() repository.AcademicRepository     { return &academicRepo{s} }
func (s *Store) Institutions() repository.InstitutionRepository {
	return &institutionRepo{s}
}
func (s *Store) Publications() repository.PublicationRepository { return &publicationRepo{s} }
func (s *Store) CatalogPublications() repository.CatalogPublicationRepository {
	return &catalogPublicationRepo{s}
}
func (s *Store) RawData() repository.RawDataRepository { return &rawDataRepo{s} }
func (s *Store) Folders() repository.FolderRepository  { return &folderRepo{s} }
func (s *Store) Jobs() repository.JobRepository        { return &jobRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository   { return &outboxRepo{s} }

// Commit keeps every write made since the last Commit or Rollback.
func (s *Store) Commit(_ context.Context) error {
	defer s.lock()()
	s.snapshot = nil
	return nil
}

// Rollback restores the state seen before the first uncommitted write.
func (s *Store) Rollback(_ context.Context) error {
	defer s.lock()()
	if s.snapshot != nil {
		s.db.state = s.snapshot
		s.snapshot = nil
	}
	return nil
}

// Close rolls back uncommitted writes.
func (s *Store) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Rollback(ctx)
}

func now() time.Time {
	return time.Now().UTC()
}

func notFound(entity string, id int64) error {
	return domain.NewNotFoundError(entity, formatID(id))
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(ids []int64, add ...int64) []int64 {
	for _, id := range add {
		if !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func newEventID() uuid.UUID {
	return uuid.New()
}
