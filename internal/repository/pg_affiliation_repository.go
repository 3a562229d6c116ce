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
var _ AffiliationRepository = (*PgAffiliationRepository)(nil)

// PgAffiliationRepository is a PostgreSQL implementation of AffiliationRepository.
type PgAffiliationRepository struct {
	db DBTX
}

// NewPgAffiliationRepository creates a new PostgreSQL affiliation repository.
func NewPgAffiliationRepository(db DBTX) *PgAffiliationRepository {
	return &PgAffiliationRepository{db: db}
}

// FindByIdentifiers returns existing affiliation IDs of one catalog.
func (r *PgAffiliationRepository) FindByIdentifiers(ctx context.Context, catalog string, identifiers []string) (map[string]int64, error) {
	ids, err := queryIDsByCatalog(ctx, r.db,
		`SELECT id, catalog_identifier FROM affiliations WHERE catalog = $1 AND catalog_identifier = ANY($2)`,
		catalog, identifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to find affiliations: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate creates the given affiliations, adopting existing rows.
func (r *PgAffiliationRepository) BulkGetOrCreate(ctx context.Context, affiliations []*domain.Affiliation) ([]Created, error) {
	for i, a := range affiliations {
		if a == nil || strings.TrimSpace(a.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("affiliation at index %d has no identifier", i))
		}
	}

	query := `
		INSERT INTO affiliations (catalog, catalog_identifier, name, address, city, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (catalog, catalog_identifier) DO UPDATE SET
			updated_at = affiliations.updated_at
		RETURNING id, (xmax = 0) AS inserted`

	argLists := make([][]interface{}, len(affiliations))
	for i, a := range affiliations {
		argLists[i] = []interface{}{a.Catalog, a.CatalogIdentifier, a.Name, a.Address, a.City, a.Country}
	}

	results, err := batchGetOrCreate(ctx, r.db, query, argLists)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create affiliations: %w", err)
	}
	for i, res := range results {
		affiliations[i].ID = res.ID
	}
	return results, nil
}

// Get retrieves an affiliation by ID.
func (r *PgAffiliationRepository) Get(ctx context.Context, id int64) (*domain.Affiliation, error) {
	query := `
		SELECT id, catalog, catalog_identifier, name, address, city, country,
			last_refreshed_at, created_at, updated_at
		FROM affiliations
		WHERE id = $1`

	var a domain.Affiliation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Catalog, &a.CatalogIdentifier, &a.Name, &a.Address, &a.City, &a.Country,
		&a.LastRefreshedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("affiliation", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get affiliation: %w", err)
	}
	return &a, nil
}

// Update overwrites the descriptive fields and last_refreshed_at.
func (r *PgAffiliationRepository) Update(ctx context.Context, a *domain.Affiliation) error {
	query := `
		UPDATE affiliations SET
			name = $2,
			address = $3,
			city = $4,
			country = $5,
			last_refreshed_at = $6,
			updated_at = $7
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		a.ID, a.Name, a.Address, a.City, a.Country, a.LastRefreshedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update affiliation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("affiliation", strconv.FormatInt(a.ID, 10))
	}
	return nil
}
