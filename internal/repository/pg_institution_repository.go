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
var _ InstitutionRepository = (*PgInstitutionRepository)(nil)

// PgInstitutionRepository is a PostgreSQL implementation of InstitutionRepository.
type PgInstitutionRepository struct {
	db DBTX
}

// NewPgInstitutionRepository creates a new PostgreSQL institution repository.
func NewPgInstitutionRepository(db DBTX) *PgInstitutionRepository {
	return &PgInstitutionRepository{db: db}
}

// BulkGetOrCreate creates the given institutions, adopting existing rows.
func (r *PgInstitutionRepository) BulkGetOrCreate(ctx context.Context, institutions []*domain.Institution) ([]Created, error) {
	for i, inst := range institutions {
		if inst == nil || strings.TrimSpace(inst.CatalogIdentifier) == "" {
			return nil, domain.NewValidationError("catalog_identifier", fmt.Sprintf("institution at index %d has no identifier", i))
		}
	}

	query := `
		INSERT INTO institutions (catalog, catalog_identifier, name, sector, country_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (catalog, catalog_identifier) DO UPDATE SET
			updated_at = institutions.updated_at
		RETURNING id, (xmax = 0) AS inserted`

	argLists := make([][]interface{}, len(institutions))
	for i, inst := range institutions {
		argLists[i] = []interface{}{inst.Catalog, inst.CatalogIdentifier, inst.Name, inst.Sector, inst.CountryCode}
	}

	results, err := batchGetOrCreate(ctx, r.db, query, argLists)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create institutions: %w", err)
	}
	for i, res := range results {
		institutions[i].ID = res.ID
	}
	return results, nil
}

// Get retrieves an institution by ID.
func (r *PgInstitutionRepository) Get(ctx context.Context, id int64) (*domain.Institution, error) {
	query := `
		SELECT id, catalog, catalog_identifier, name, sector, country_code,
			last_refreshed_at, created_at, updated_at
		FROM institutions
		WHERE id = $1`

	var inst domain.Institution
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inst.ID, &inst.Catalog, &inst.CatalogIdentifier, &inst.Name, &inst.Sector, &inst.CountryCode,
		&inst.LastRefreshedAt, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("institution", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}
	return &inst, nil
}

// Update overwrites the descriptive fields and last_refreshed_at.
func (r *PgInstitutionRepository) Update(ctx context.Context, inst *domain.Institution) error {
	query := `
		UPDATE institutions SET
			name = $2,
			sector = $3,
			country_code = $4,
			last_refreshed_at = $5,
			updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		inst.ID, inst.Name, inst.Sector, inst.CountryCode, inst.LastRefreshedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update institution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("institution", strconv.FormatInt(inst.ID, 10))
	}
	return nil
}

// LinkPublication links institutions to a publication.
func (r *PgInstitutionRepository) LinkPublication(ctx context.Context, publicationID int64, institutionIDs []int64) error {
	if len(institutionIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO publication_institutions (publication_id, institution_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, publicationID, institutionIDs); err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("publication", strconv.FormatInt(publicationID, 10))
		}
		return fmt.Errorf("failed to link publication institutions: %w", err)
	}
	return nil
}
