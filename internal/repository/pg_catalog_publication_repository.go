package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var _ CatalogPublicationRepository = (*PgCatalogPublicationRepository)(nil)

// PgCatalogPublicationRepository is a PostgreSQL implementation of
// CatalogPublicationRepository.
type PgCatalogPublicationRepository struct {
	db DBTX
}

// NewPgCatalogPublicationRepository creates a new PostgreSQL catalog publication repository.
func NewPgCatalogPublicationRepository(db DBTX) *PgCatalogPublicationRepository {
	return &PgCatalogPublicationRepository{db: db}
}

const catalogPublicationColumns = `id, catalog, catalog_identifier, publication_id, doi, title, abstract,
			volume, issue, pages, funding_text, is_open_access, cited_by_count, href,
			cover_date, period_start, period_end, journal_id, subtype_id,
			last_refreshed_at, created_at, updated_at`

// FindPublicationIDs returns owning publication IDs keyed by catalog identifier.
func (r *PgCatalogPublicationRepository) FindPublicationIDs(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	ids, err := queryIDsByCatalog(ctx, r.db,
		`SELECT publication_id, catalog_identifier FROM catalog_publications WHERE catalog = $1 AND catalog_identifier = ANY($2)`,
		catalog, identifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog publications: %w", err)
	}
	return ids, nil
}

// Get retrieves a catalog publication by ID.
func (r *PgCatalogPublicationRepository) Get(ctx context.Context, id int64) (*domain.CatalogPublication, error) {
	query := `SELECT ` + catalogPublicationColumns + ` FROM catalog_publications WHERE id = $1`

	cp, err := scanCatalogPublication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("catalog_publication", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get catalog publication: %w", err)
	}
	return cp, nil
}

// GetByReference retrieves a catalog publication by catalog and identifier.
func (r *PgCatalogPublicationRepository) GetByReference(ctx context.Context, ref domain.CatalogReference) (*domain.CatalogPublication, error) {
	query := `SELECT ` + catalogPublicationColumns + `
		FROM catalog_publications
		WHERE catalog = $1 AND catalog_identifier = $2`

	cp, err := scanCatalogPublication(r.db.QueryRow(ctx, query, ref.Catalog, ref.Identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("catalog_publication", ref.String())
		}
		return nil, fmt.Errorf("failed to get catalog publication by reference: %w", err)
	}
	return cp, nil
}

// Create inserts a catalog publication, adopting an existing row.
func (r *PgCatalogPublicationRepository) Create(ctx context.Context, cp *domain.CatalogPublication) (Created, error) {
	if cp == nil || cp.CatalogIdentifier == "" {
		return Created{}, domain.NewValidationError("catalog_identifier", "catalog publication has no identifier")
	}

	query := `
		INSERT INTO catalog_publications (catalog, catalog_identifier, publication_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (catalog, catalog_identifier) DO UPDATE SET
			updated_at = catalog_publications.updated_at
		RETURNING id, (xmax = 0) AS inserted`

	var res Created
	err := r.db.QueryRow(ctx, query, cp.Catalog, cp.CatalogIdentifier, cp.PublicationID).
		Scan(&res.ID, &res.Inserted)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return Created{}, domain.NewNotFoundError("publication", strconv.FormatInt(cp.PublicationID, 10))
		}
		return Created{}, fmt.Errorf("failed to create catalog publication: %w", err)
	}
	cp.ID = res.ID
	return res, nil
}

// Update overwrites scalars, period, journal and subtype.
func (r *PgCatalogPublicationRepository) Update(ctx context.Context, cp *domain.CatalogPublication) error {
	query := `
		UPDATE catalog_publications SET
			doi = $2,
			title = $3,
			abstract = $4,
			volume = $5,
			issue = $6,
			pages = $7,
			funding_text = $8,
			is_open_access = $9,
			cited_by_count = $10,
			href = $11,
			cover_date = $12,
			period_start = $13,
			period_end = $14,
			journal_id = $15,
			subtype_id = $16,
			updated_at = $17
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		cp.ID, cp.DOI, cp.Title, cp.Abstract, cp.Volume, cp.Issue, cp.Pages, cp.FundingText,
		cp.IsOpenAccess, cp.CitedByCount, cp.Href,
		cp.CoverDate, cp.PeriodStart, cp.PeriodEnd, cp.JournalID, cp.SubtypeID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update catalog publication: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("catalog_publication", strconv.FormatInt(cp.ID, 10))
	}
	return nil
}

// MarkRefreshed stamps last_refreshed_at.
func (r *PgCatalogPublicationRepository) MarkRefreshed(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.Exec(ctx,
		`UPDATE catalog_publications SET last_refreshed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark catalog publication refreshed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("catalog_publication", strconv.FormatInt(id, 10))
	}
	return nil
}

// ListByPublication returns the catalog records of a publication.
func (r *PgCatalogPublicationRepository) ListByPublication(ctx context.Context, publicationID int64) ([]*domain.CatalogPublication, error) {
	query := `SELECT ` + catalogPublicationColumns + `
		FROM catalog_publications
		WHERE publication_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, publicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog publications: %w", err)
	}
	defer rows.Close()

	var result []*domain.CatalogPublication
	for rows.Next() {
		cp, err := scanCatalogPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog publication: %w", err)
		}
		result = append(result, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog publications: %w", err)
	}
	return result, nil
}

// ExistsForPublication reports whether a publication has a record in catalog.
func (r *PgCatalogPublicationRepository) ExistsForPublication(ctx context.Context, publicationID int64, catalog string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM catalog_publications WHERE publication_id = $1 AND catalog = $2
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, publicationID, catalog).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check catalog publication: %w", err)
	}
	return exists, nil
}

// ReplaceSponsors replaces the sponsor set of a record.
func (r *PgCatalogPublicationRepository) ReplaceSponsors(ctx context.Context, id int64, sponsorIDs []int64) error {
	return r.replaceLinks(ctx, "catalog_publication_sponsors", "sponsor_id", id, sponsorIDs)
}

// ReplaceKeywords replaces the keyword set of a record.
func (r *PgCatalogPublicationRepository) ReplaceKeywords(ctx context.Context, id int64, keywordIDs []int64) error {
	return r.replaceLinks(ctx, "catalog_publication_keywords", "keyword_id", id, keywordIDs)
}

// replaceLinks clears and re-inserts one association table. table and column
// are package constants, never caller input.
func (r *PgCatalogPublicationRepository) replaceLinks(ctx context.Context, table, column string, id int64, ids []int64) error {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE catalog_publication_id = $1`, table)
	if _, err := r.db.Exec(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if len(ids) == 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (catalog_publication_id, %s)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, table, column)
	if _, err := r.db.Exec(ctx, insertQuery, id, ids); err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}
	return nil
}

// ReplaceAuthorships rebuilds the authorship of a record in four statements:
// clear affiliation links, clear rows, insert rows, attach affiliations.
func (r *PgCatalogPublicationRepository) ReplaceAuthorships(ctx context.Context, id int64, authorships []*domain.Authorship) error {
	clearLinks := `
		DELETE FROM catalog_publication_source_affiliations
		WHERE catalog_publication_source_id IN (
			SELECT id FROM catalog_publication_sources WHERE catalog_publication_id = $1
		)`
	if _, err := r.db.Exec(ctx, clearLinks, id); err != nil {
		return fmt.Errorf("failed to clear authorship affiliations: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM catalog_publication_sources WHERE catalog_publication_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear authorships: %w", err)
	}

	if len(authorships) == 0 {
		return nil
	}

	insertRow := `
		INSERT INTO catalog_publication_sources (catalog_publication_id, source_id, ordinal)
		VALUES ($1, $2, $3)
		RETURNING id`

	batch := &pgx.Batch{}
	for _, a := range authorships {
		batch.Queue(insertRow, id, a.SourceID, a.Ordinal)
	}

	br := r.db.SendBatch(ctx, batch)
	for _, a := range authorships {
		if err := br.QueryRow().Scan(&a.ID); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert authorship at ordinal %d: %w", a.Ordinal, err)
		}
		a.CatalogPublicationID = id
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert authorships: %w", err)
	}

	var rowIDs, affiliationIDs []int64
	for _, a := range authorships {
		for _, affID := range a.AffiliationIDs {
			rowIDs = append(rowIDs, a.ID)
			affiliationIDs = append(affiliationIDs, affID)
		}
	}
	if len(rowIDs) == 0 {
		return nil
	}

	attach := `
		INSERT INTO catalog_publication_source_affiliations (catalog_publication_source_id, affiliation_id)
		SELECT * FROM unnest($1::bigint[], $2::bigint[])
		ON CONFLICT DO NOTHING`
	if _, err := r.db.Exec(ctx, attach, rowIDs, affiliationIDs); err != nil {
		return fmt.Errorf("failed to attach authorship affiliations: %w", err)
	}
	return nil
}

// ListAuthorships returns the authorship rows of a record ordered by ordinal.
func (r *PgCatalogPublicationRepository) ListAuthorships(ctx context.Context, id int64) ([]*domain.Authorship, error) {
	query := `
		SELECT cps.id, cps.catalog_publication_id, cps.source_id, cps.ordinal,
			COALESCE(array_agg(cpsa.affiliation_id ORDER BY cpsa.affiliation_id)
				FILTER (WHERE cpsa.affiliation_id IS NOT NULL), '{}')
		FROM catalog_publication_sources cps
		LEFT JOIN catalog_publication_source_affiliations cpsa
			ON cpsa.catalog_publication_source_id = cps.id
		WHERE cps.catalog_publication_id = $1
		GROUP BY cps.id
		ORDER BY cps.ordinal`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorships: %w", err)
	}
	defer rows.Close()

	var result []*domain.Authorship
	for rows.Next() {
		var a domain.Authorship
		if err := rows.Scan(&a.ID, &a.CatalogPublicationID, &a.SourceID, &a.Ordinal, &a.AffiliationIDs); err != nil {
			return nil, fmt.Errorf("failed to scan authorship: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authorships: %w", err)
	}
	return result, nil
}

// ListAuthorNames returns the display names of a record's authors.
func (r *PgCatalogPublicationRepository) ListAuthorNames(ctx context.Context, id int64) ([]string, error) {
	query := `
		SELECT s.display_name
		FROM catalog_publication_sources cps
		JOIN sources s ON s.id = cps.source_id
		WHERE cps.catalog_publication_id = $1
		ORDER BY cps.ordinal`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list author names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan author name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating author names: %w", err)
	}
	return names, nil
}

func scanCatalogPublication(row pgx.Row) (*domain.CatalogPublication, error) {
	var cp domain.CatalogPublication
	err := row.Scan(
		&cp.ID, &cp.Catalog, &cp.CatalogIdentifier, &cp.PublicationID, &cp.DOI, &cp.Title, &cp.Abstract,
		&cp.Volume, &cp.Issue, &cp.Pages, &cp.FundingText, &cp.IsOpenAccess, &cp.CitedByCount, &cp.Href,
		&cp.CoverDate, &cp.PeriodStart, &cp.PeriodEnd, &cp.JournalID, &cp.SubtypeID,
		&cp.LastRefreshedAt, &cp.CreatedAt, &cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
