package repository

import (
	"context"
	"fmt"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var (
	_ RawDataRepository = (*PgRawDataRepository)(nil)
	_ FolderRepository  = (*PgFolderRepository)(nil)
)

// PgRawDataRepository is a PostgreSQL implementation of RawDataRepository.
type PgRawDataRepository struct {
	db DBTX
}

// NewPgRawDataRepository creates a new PostgreSQL raw data repository.
func NewPgRawDataRepository(db DBTX) *PgRawDataRepository {
	return &PgRawDataRepository{db: db}
}

// Insert appends a raw data row.
func (r *PgRawDataRepository) Insert(ctx context.Context, raw *domain.RawData) error {
	if raw == nil {
		return domain.NewValidationError("raw_data", "raw data cannot be nil")
	}

	data := raw.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	query := `
		INSERT INTO raw_data (catalog, catalog_identifier, action, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, raw.Catalog, raw.CatalogIdentifier, raw.Action, data).
		Scan(&raw.ID, &raw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert raw data: %w", err)
	}
	return nil
}
