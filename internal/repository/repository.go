// Package repository provides data access interfaces and implementations
// for the Catalog Sync Service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from the
// reconciliation engine and the job runner.
//
// # Repository Interfaces
//
//   - JournalRepository, SubtypeRepository, SponsorRepository, KeywordRepository:
//     get-or-create lookups keyed by a normalized natural key
//   - AffiliationRepository, SourceRepository, InstitutionRepository: catalog
//     entities keyed by (catalog, catalog_identifier)
//   - AcademicRepository: tracked researchers
//   - PublicationRepository, CatalogPublicationRepository: canonical publications
//     and their per-catalog records, including authorship
//   - RawDataRepository: append-only audit of ingested payloads
//   - FolderRepository: standing publication collections
//   - JobRepository: the durable async job queue
//   - OutboxRepository: reconciliation events awaiting publication
//
// # Unit of Work
//
// Callers never share a pool-backed repository across a job. A Store bundles
// every repository over one database.Session and exposes Commit and Rollback:
//
//	store, _ := factory.Begin(ctx)
//	defer store.Close(ctx)
//	id, _ := store.Jobs().Schedule(ctx, job)
//	_ = store.Commit(ctx)
//
// # Concurrent Creation
//
// Creation statements use INSERT ... ON CONFLICT ... DO UPDATE ... RETURNING so
// a row created by a concurrent pass is adopted instead of failing. The
// Created.Inserted flag reports whether this statement created the row.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/catalog-sync-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with direct pool connections, transactions
// and database.Session units of work.
//
// # Constructor Pattern
//
//	type PgJobRepository struct {
//	    db DBTX
//	}
//
//	func NewPgJobRepository(db DBTX) *PgJobRepository {
//	    return &PgJobRepository{db: db}
//	}
type DBTX = database.DBTX

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// Created is the outcome of a get-or-create statement for one row.
type Created struct {
	ID int64

	// Inserted is false when the row already existed and was adopted.
	Inserted bool
}

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// uniqueStrings returns values with empty strings and duplicates removed,
// preserving first-seen order.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
