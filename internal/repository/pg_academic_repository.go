package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var _ AcademicRepository = (*PgAcademicRepository)(nil)

// PgAcademicRepository is a PostgreSQL implementation of AcademicRepository.
type PgAcademicRepository struct {
	db DBTX
}

// NewPgAcademicRepository creates a new PostgreSQL academic repository.
func NewPgAcademicRepository(db DBTX) *PgAcademicRepository {
	return &PgAcademicRepository{db: db}
}

// Get retrieves an academic by ID.
func (r *PgAcademicRepository) Get(ctx context.Context, id int64) (*domain.Academic, error) {
	query := `
		SELECT id, display_name, orcid, tracked, created_at, updated_at
		FROM academics
		WHERE id = $1`

	var a domain.Academic
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.DisplayName, &a.ORCID, &a.Tracked, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("academic", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get academic: %w", err)
	}
	return &a, nil
}

// ListTrackedIDs returns the IDs of all tracked academics.
func (r *PgAcademicRepository) ListTrackedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM academics WHERE tracked ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked academics: %w", err)
	}
	defer rows.Close()

	ids, err := collectInt64s(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked academics: %w", err)
	}
	return ids, nil
}

func collectInt64s(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
