package repository

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/database"
)

// Store is an explicit unit of work: every repository bound to one
// transaction handle. Statements run in a transaction that begins lazily;
// Commit and Rollback end it and the next statement begins another.
//
// A Store is not safe for concurrent use.
type Store interface {
	Journals() JournalRepository
	Subtypes() SubtypeRepository
	Sponsors() SponsorRepository
	Keywords() KeywordRepository
	Affiliations() AffiliationRepository
	Sources() SourceRepository
	Academics() AcademicRepository
	Institutions() InstitutionRepository
	Publications() PublicationRepository
	CatalogPublications() CatalogPublicationRepository
	RawData() RawDataRepository
	Folders() FolderRepository
	Jobs() JobRepository
	Outbox() OutboxRepository

	// Commit commits the open transaction, if any.
	Commit(ctx context.Context) error

	// Rollback discards the open transaction, if any.
	Rollback(ctx context.Context) error

	// Close rolls back any open transaction and releases the store.
	Close(ctx context.Context) error
}

// StoreFactory opens stores.
type StoreFactory interface {
	Begin(ctx context.Context) (Store, error)
}

// Compile-time interface verification.
var (
	_ Store        = (*PgStore)(nil)
	_ StoreFactory = (*PgStoreFactory)(nil)
)

// PgStore is a Store over a database.Session.
type PgStore struct {
	session *database.Session

	journals            *PgJournalRepository
	subtypes            *PgSubtypeRepository
	sponsors            *PgSponsorRepository
	keywords            *PgKeywordRepository
	affiliations        *PgAffiliationRepository
	sources             *PgSourceRepository
	academics           *PgAcademicRepository
	institutions        *PgInstitutionRepository
	publications        *PgPublicationRepository
	catalogPublications *PgCatalogPublicationRepository
	rawData             *PgRawDataRepository
	folders             *PgFolderRepository
	jobs                *PgJobRepository
	outbox              *PgOutboxRepository
}

// NewPgStore binds every PostgreSQL repository to session.
func NewPgStore(session *database.Session) *PgStore {
	return &PgStore{
		session:             session,
		journals:            NewPgJournalRepository(session),
		subtypes:            NewPgSubtypeRepository(session),
		sponsors:            NewPgSponsorRepository(session),
		keywords:            NewPgKeywordRepository(session),
		affiliations:        NewPgAffiliationRepository(session),
		sources:             NewPgSourceRepository(session),
		academics:           NewPgAcademicRepository(session),
		institutions:        NewPgInstitutionRepository(session),
		publications:        NewPgPublicationRepository(session),
		catalogPublications: NewPgCatalogPublicationRepository(session),
		rawData:             NewPgRawDataRepository(session),
		folders:             NewPgFolderRepository(session),
		jobs:                NewPgJobRepository(session),
		outbox:              NewPgOutboxRepository(session),
	}
}

func (s *PgStore) Journals() JournalRepository                       { return s.journals }
func (s *PgStore) Subtypes() SubtypeRepository                       { return s.subtypes }
func (s *PgStore) Sponsors() SponsorRepository                       { return s.sponsors }
func (s *PgStore) Keywords() KeywordRepository                       { return s.keywords }
func (s *PgStore) Affiliations() AffiliationRepository               { return s.affiliations }
func (s *PgStore) Sources() SourceRepository                         { return s.sources }
func (s *PgStore) Academics() AcademicRepository                     { return s.academics }
func (s *PgStore) Institutions() InstitutionRepository               { return s.institutions }
func (s *PgStore) Publications() PublicationRepository               { return s.publications }
func (s *PgStore) CatalogPublications() CatalogPublicationRepository { return s.catalogPublications }
func (s *PgStore) RawData() RawDataRepository                        { return s.rawData }
func (s *PgStore) Folders() FolderRepository                         { return s.folders }
func (s *PgStore) Jobs() JobRepository                               { return s.jobs }
func (s *PgStore) Outbox() OutboxRepository                          { return s.outbox }

// Commit commits the open transaction, if any.
func (s *PgStore) Commit(ctx context.Context) error {
	return s.session.Commit(ctx)
}

// Rollback discards the open transaction, if any.
func (s *PgStore) Rollback(ctx context.Context) error {
	return s.session.Rollback(ctx)
}

// Close rolls back any open transaction and releases the store.
func (s *PgStore) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

// PgStoreFactory opens PgStores whose sessions begin transactions from one
// pool.
type PgStoreFactory struct {
	beginner database.TxBeginner
	logger   zerolog.Logger
}

// NewPgStoreFactory creates a store factory. beginner is typically a
// *database.DB.
func NewPgStoreFactory(beginner database.TxBeginner, logger zerolog.Logger) *PgStoreFactory {
	return &PgStoreFactory{
		beginner: beginner,
		logger:   logger.With().Str("component", "store").Logger(),
	}
}

// Begin opens a store. No transaction is started until the first statement.
func (f *PgStoreFactory) Begin(_ context.Context) (Store, error) {
	return NewPgStore(database.NewSession(f.beginner, f.logger)), nil
}
