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
var _ PublicationRepository = (*PgPublicationRepository)(nil)

// PgPublicationRepository is a PostgreSQL implementation of PublicationRepository.
type PgPublicationRepository struct {
	db DBTX
}

// NewPgPublicationRepository creates a new PostgreSQL publication repository.
func NewPgPublicationRepository(db DBTX) *PgPublicationRepository {
	return &PgPublicationRepository{db: db}
}

// FindByDOIs returns existing publication IDs keyed by DOI.
func (r *PgPublicationRepository) FindByDOIs(ctx context.Context, dois []string) (map[string]int64, error) {
	keys := uniqueStrings(dois)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	ids, err := queryIDsByKey(ctx, r.db,
		`SELECT id, doi FROM publications WHERE doi = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find publications by doi: %w", err)
	}
	return ids, nil
}

// CreateMany creates one publication per entry in a single batch.
func (r *PgPublicationRepository) CreateMany(ctx context.Context, dois []*string) ([]Created, error) {
	if len(dois) == 0 {
		return []Created{}, nil
	}

	withDOI := `
		INSERT INTO publications (doi, status)
		VALUES ($1, $2)
		ON CONFLICT (doi) WHERE doi IS NOT NULL DO UPDATE SET
			updated_at = publications.updated_at
		RETURNING id, (xmax = 0) AS inserted`
	withoutDOI := `
		INSERT INTO publications (status)
		VALUES ($1)
		RETURNING id, TRUE AS inserted`

	batch := &pgx.Batch{}
	for _, doi := range dois {
		if doi != nil && *doi != "" {
			batch.Queue(withDOI, *doi, string(domain.PublicationStatusUnknown))
			continue
		}
		batch.Queue(withoutDOI, string(domain.PublicationStatusUnknown))
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	results := make([]Created, len(dois))
	for i := range dois {
		if err := br.QueryRow().Scan(&results[i].ID, &results[i].Inserted); err != nil {
			return nil, fmt.Errorf("failed to create publication at index %d: %w", i, err)
		}
	}
	return results, nil
}

// Get retrieves a publication by ID.
func (r *PgPublicationRepository) Get(ctx context.Context, id int64) (*domain.Publication, error) {
	query := `
		SELECT id, doi, reference, is_preprint, status, validation_historic,
			initialised_at, created_at, updated_at
		FROM publications
		WHERE id = $1`

	var (
		p      domain.Publication
		status string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.DOI, &p.Reference, &p.IsPreprint, &status, &p.ValidationHistoric,
		&p.InitialisedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("publication", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get publication: %w", err)
	}
	p.Status = domain.PublicationStatus(status)
	return &p, nil
}

// UpdateDerived writes the derived display fields and initialised_at.
func (r *PgPublicationRepository) UpdateDerived(ctx context.Context, p *domain.Publication) error {
	query := `
		UPDATE publications SET
			reference = $2,
			is_preprint = $3,
			status = $4,
			initialised_at = $5,
			updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		p.ID, p.Reference, p.IsPreprint, string(p.Status), p.InitialisedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update publication: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("publication", strconv.FormatInt(p.ID, 10))
	}
	return nil
}

// SetValidationHistoric sets the historic validation flag.
func (r *PgPublicationRepository) SetValidationHistoric(ctx context.Context, id int64, historic bool) error {
	query := `
		UPDATE publications SET
			validation_historic = $2,
			updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, historic, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set validation historic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("publication", strconv.FormatInt(id, 10))
	}
	return nil
}

// DeleteUnused deletes publications without any catalog publication.
func (r *PgPublicationRepository) DeleteUnused(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM publications p
		WHERE NOT EXISTS (
			SELECT 1 FROM catalog_publications cp WHERE cp.publication_id = p.id
		)`

	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unused publications: %w", err)
	}
	return result.RowsAffected(), nil
}
