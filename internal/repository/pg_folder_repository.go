package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// PgFolderRepository is a PostgreSQL implementation of FolderRepository.
type PgFolderRepository struct {
	db DBTX
}

// NewPgFolderRepository creates a new PostgreSQL folder repository.
func NewPgFolderRepository(db DBTX) *PgFolderRepository {
	return &PgFolderRepository{db: db}
}

// ListAutofill returns the folders with autofill enabled.
func (r *PgFolderRepository) ListAutofill(ctx context.Context) ([]*domain.Folder, error) {
	query := `
		SELECT id, name, academic_id, autofill, created_at
		FROM folders
		WHERE autofill
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list autofill folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.AcademicID, &f.Autofill, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}
	return folders, nil
}

// AttachMatching attaches the folder academic's publications whose period
// overlaps [from, to].
func (r *PgFolderRepository) AttachMatching(ctx context.Context, folder *domain.Folder, from, to time.Time) (int64, error) {
	query := `
		INSERT INTO folder_publications (folder_id, publication_id, added_at)
		SELECT DISTINCT $1::bigint, cp.publication_id, $5::timestamptz
		FROM catalog_publications cp
		JOIN catalog_publication_sources cps ON cps.catalog_publication_id = cp.id
		JOIN sources s ON s.id = cps.source_id
		WHERE s.academic_id = $2
			AND cp.period_start IS NOT NULL
			AND cp.period_end IS NOT NULL
			AND cp.period_start <= $4
			AND cp.period_end >= $3
		ON CONFLICT DO NOTHING`

	result, err := r.db.Exec(ctx, query, folder.ID, folder.AcademicID, from, to, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to autofill folder %d: %w", folder.ID, err)
	}
	return result.RowsAffected(), nil
}
