package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var _ SourceRepository = (*PgSourceRepository)(nil)

// PgSourceRepository is a PostgreSQL implementation of SourceRepository.
type PgSourceRepository struct {
	db DBTX
}

// NewPgSourceRepository creates a new PostgreSQL source repository.
func NewPgSourceRepository(db DBTX) *PgSourceRepository {
	return &PgSourceRepository{db: db}
}

const sourceColumns = `id, catalog, catalog_identifier, display_name, first_name, last_name,
			initials, orcid, href, citation_count, document_count, h_index,
			academic_id, status, error, error_message, last_fetched_at, created_at, updated_at`

// FindByIdentifiers returns existing source IDs of one catalog.
func (r *PgSourceRepository) FindByIdentifiers(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	ids, err := queryIDsByCatalog(ctx, r.db,
		`SELECT id, catalog_identifier FROM sources WHERE catalog = $1 AND catalog_identifier = ANY($2)`,
		catalog, identifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to find sources: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate creates the given sources, adopting existing rows.
func (r *PgSourceRepository) BulkGetOrCreate(ctx context.Context, sources []*domain.Source) ([]Created, error) {
	for i, s := range sources {
		if s == nil || strings.TrimSpace(s.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("source at index %d has no identifier", i))
		}
	}

	query := `
		INSERT INTO sources (
			catalog, catalog_identifier, display_name, first_name, last_name,
			initials, orcid, href, citation_count, document_count, h_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (catalog, catalog_identifier) DO UPDATE SET
			updated_at = sources.updated_at
		RETURNING id, (xmax = 0) AS inserted`

	argLists := make([][]interface{}, len(sources))
	for i, s := range sources {
		argLists[i] = []interface{}{
			s.Catalog, s.CatalogIdentifier, s.DisplayName, s.FirstName, s.LastName,
			s.Initials, s.ORCID, s.Href, s.CitationCount, s.DocumentCount, s.HIndex,
		}
	}

	results, err := batchGetOrCreate(ctx, r.db, query, argLists)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create sources: %w", err)
	}
	for i, res := range results {
		sources[i].ID = res.ID
	}
	return results, nil
}

// Get retrieves a source by ID.
func (r *PgSourceRepository) Get(ctx context.Context, id int64) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	s, err := scanSource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("source", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

// ListByAcademic returns the sources linked to an academic.
func (r *PgSourceRepository) ListByAcademic(ctx context.Context, academicID int64) ([]*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE academic_id = $1 ORDER BY id`

	sources, err := r.list(ctx, query, academicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources by academic: %w", err)
	}
	return sources, nil
}

// ListByORCID returns every source carrying the given ORCID.
func (r *PgSourceRepository) ListByORCID(ctx context.Context, orcid string) ([]*domain.Source, error) {
	if orcid == "" {
		return []*domain.Source{}, nil
	}
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE orcid = $1 ORDER BY id`

	sources, err := r.list(ctx, query, orcid)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources by orcid: %w", err)
	}
	return sources, nil
}

func (r *PgSourceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// Update overwrites the author fields, the error flags and last_fetched_at.
func (r *PgSourceRepository) Update(ctx context.Context, s *domain.Source) error {
	query := `
		UPDATE sources SET
			display_name = $2,
			first_name = $3,
			last_name = $4,
			initials = $5,
			orcid = $6,
			href = $7,
			citation_count = $8,
			document_count = $9,
			h_index = $10,
			error = $11,
			error_message = $12,
			last_fetched_at = $13,
			updated_at = $14
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		s.ID, s.DisplayName, s.FirstName, s.LastName, s.Initials, s.ORCID, s.Href,
		s.CitationCount, s.DocumentCount, s.HIndex,
		s.Error, s.ErrorMessage, s.LastFetchedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("source", strconv.FormatInt(s.ID, 10))
	}
	return nil
}

// SetStatus links a source to an academic with the given status.
func (r *PgSourceRepository) SetStatus(ctx context.Context, id int64, academicID *int64, status domain.SourceStatus) error {
	query := `
		UPDATE sources SET
			academic_id = $2,
			status = $3,
			updated_at = $4
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, academicID, string(status), time.Now().UTC())
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewValidationError("academic_id", "academic does not exist")
		}
		return fmt.Errorf("failed to set source status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("source", strconv.FormatInt(id, 10))
	}
	return nil
}

// ClaimPotential links the unowned sources among ids to an academic.
func (r *PgSourceRepository) ClaimPotential(ctx context.Context, ids []int64, academicID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE sources SET
			academic_id = $1,
			status = $2,
			updated_at = $3
		WHERE id = ANY($4) AND academic_id IS NULL`

	result, err := r.db.Exec(ctx, query, academicID, string(domain.SourceStatusPotential), time.Now().UTC(), ids)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return 0, domain.NewValidationError("academic_id", "academic does not exist")
		}
		return 0, fmt.Errorf("failed to claim potential sources: %w", err)
	}
	return result.RowsAffected(), nil
}

// MarkError flags a source whose catalog identity no longer resolves.
func (r *PgSourceRepository) MarkError(ctx context.Context, id int64, message string, at time.Time) error {
	query := `
		UPDATE sources SET
			error = TRUE,
			error_message = $2,
			last_fetched_at = $3,
			updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, message, at)
	if err != nil {
		return fmt.Errorf("failed to mark source error: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("source", strconv.FormatInt(id, 10))
	}
	return nil
}

// ReplaceAffiliations replaces the current affiliations of a source.
func (r *PgSourceRepository) ReplaceAffiliations(ctx context.Context, sourceID int64, affiliationIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM source_affiliations WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("failed to clear source affiliations: %w", err)
	}
	if len(affiliationIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO source_affiliations (source_id, affiliation_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, sourceID, affiliationIDs); err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewValidationError("affiliation_id", "affiliation does not exist")
		}
		return fmt.Errorf("failed to insert source affiliations: %w", err)
	}
	return nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var (
		s      domain.Source
		status string
	)
	err := row.Scan(
		&s.ID, &s.Catalog, &s.CatalogIdentifier, &s.DisplayName, &s.FirstName, &s.LastName,
		&s.Initials, &s.ORCID, &s.Href, &s.CitationCount, &s.DocumentCount, &s.HIndex,
		&s.AcademicID, &status, &s.Error, &s.ErrorMessage, &s.LastFetchedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SourceStatus(status)
	return &s, nil
}
