package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// Compile-time interface verification.
var (
	_ JournalRepository = (*PgJournalRepository)(nil)
	_ SubtypeRepository = (*PgSubtypeRepository)(nil)
	_ SponsorRepository = (*PgSponsorRepository)(nil)
	_ KeywordRepository = (*PgKeywordRepository)(nil)
)

// PgJournalRepository is a PostgreSQL implementation of JournalRepository.
type PgJournalRepository struct {
	db DBTX
}

// NewPgJournalRepository creates a new PostgreSQL journal repository.
func NewPgJournalRepository(db DBTX) *PgJournalRepository {
	return &PgJournalRepository{db: db}
}

// FindByNormalizedNames returns existing journal IDs keyed by normalized name.
func (r *PgJournalRepository) FindByNormalizedNames(ctx context.Context, normalized []string) (map[string]int64, error) {
	keys := uniqueStrings(normalized)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	ids, err := queryIDsByKey(ctx, r.db,
		`SELECT id, normalized_name FROM journals WHERE normalized_name = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find journals: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate creates the named journals, adopting existing rows.
func (r *PgJournalRepository) BulkGetOrCreate(ctx context.Context, names []string) (map[string]int64, error) {
	var rows [][]interface{}
	seen := make(map[string]bool)
	for _, name := range names {
		normalized := domain.NormalizeName(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		rows = append(rows, []interface{}{strings.TrimSpace(name), normalized})
	}

	ids, err := upsertReturningKeys(ctx, r.db,
		`INSERT INTO journals (name, normalized_name)`,
		`ON CONFLICT (normalized_name) DO UPDATE SET
			normalized_name = journals.normalized_name
		RETURNING id, normalized_name`,
		rows)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create journals: %w", err)
	}
	return ids, nil
}

// Get retrieves a journal by ID.
func (r *PgJournalRepository) Get(ctx context.Context, id int64) (*domain.Journal, error) {
	query := `
		SELECT id, name, normalized_name, created_at
		FROM journals
		WHERE id = $1`

	var j domain.Journal
	err := r.db.QueryRow(ctx, query, id).Scan(&j.ID, &j.Name, &j.NormalizedName, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("journal", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	return &j, nil
}

// PgSubtypeRepository is a PostgreSQL implementation of SubtypeRepository.
type PgSubtypeRepository struct {
	db DBTX
}

// NewPgSubtypeRepository creates a new PostgreSQL subtype repository.
func NewPgSubtypeRepository(db DBTX) *PgSubtypeRepository {
	return &PgSubtypeRepository{db: db}
}

// FindByDescriptions returns existing subtype IDs keyed by description.
func (r *PgSubtypeRepository) FindByDescriptions(ctx context.Context, descriptions []string) (map[string]int64, error) {
	keys := uniqueStrings(descriptions)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	ids, err := queryIDsByKey(ctx, r.db,
		`SELECT id, description FROM subtypes WHERE description = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find subtypes: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate creates the given subtypes, adopting existing rows. An
// existing row keeps its code unless it has none.
func (r *PgSubtypeRepository) BulkGetOrCreate(ctx context.Context, subtypes []*domain.Subtype) (map[string]int64, error) {
	var rows [][]interface{}
	seen := make(map[string]bool)
	for _, s := range subtypes {
		if s == nil || s.Description == "" || seen[s.Description] {
			continue
		}
		seen[s.Description] = true
		rows = append(rows, []interface{}{s.Code, s.Description})
	}

	ids, err := upsertReturningKeys(ctx, r.db,
		`INSERT INTO subtypes (code, description)`,
		`ON CONFLICT (description) DO UPDATE SET
			code = CASE WHEN subtypes.code = '' THEN EXCLUDED.code ELSE subtypes.code END
		RETURNING id, description`,
		rows)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create subtypes: %w", err)
	}
	return ids, nil
}

// Get retrieves a subtype by ID.
func (r *PgSubtypeRepository) Get(ctx context.Context, id int64) (*domain.Subtype, error) {
	query := `
		SELECT id, code, description, created_at
		FROM subtypes
		WHERE id = $1`

	var s domain.Subtype
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Code, &s.Description, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subtype", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get subtype: %w", err)
	}
	return &s, nil
}

// PgSponsorRepository is a PostgreSQL implementation of SponsorRepository.
type PgSponsorRepository struct {
	db DBTX
}

// NewPgSponsorRepository creates a new PostgreSQL sponsor repository.
func NewPgSponsorRepository(db DBTX) *PgSponsorRepository {
	return &PgSponsorRepository{db: db}
}

// FindByNormalizedNames returns existing sponsor IDs keyed by normalized name.
func (r *PgSponsorRepository) FindByNormalizedNames(ctx context.Context, normalized []string) (map[string]int64, error) {
	keys := uniqueStrings(normalized)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	ids, err := queryIDsByKey(ctx, r.db,
		`SELECT id, normalized_name FROM sponsors WHERE normalized_name = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find sponsors: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate creates the given sponsors, adopting existing rows.
func (r *PgSponsorRepository) BulkGetOrCreate(ctx context.Context, sponsors []*domain.Sponsor) (map[string]int64, error) {
	var rows [][]interface{}
	seen := make(map[string]bool)
	for _, s := range sponsors {
		if s == nil {
			continue
		}
		normalized := s.NormalizedName
		if normalized == "" {
			normalized = domain.NormalizeName(s.Name)
		}
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		rows = append(rows, []interface{}{strings.TrimSpace(s.Name), normalized, s.IsNIHR})
	}

	ids, err := upsertReturningKeys(ctx, r.db,
		`INSERT INTO sponsors (name, normalized_name, is_nihr)`,
		`ON CONFLICT (normalized_name) DO UPDATE SET
			normalized_name = sponsors.normalized_name
		RETURNING id, normalized_name`,
		rows)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create sponsors: %w", err)
	}
	return ids, nil
}

// PgKeywordRepository is a PostgreSQL implementation of KeywordRepository.
type PgKeywordRepository struct {
	db DBTX
}

// NewPgKeywordRepository creates a new PostgreSQL keyword repository.
func NewPgKeywordRepository(db DBTX) *PgKeywordRepository {
	return &PgKeywordRepository{db: db}
}

// FindByNormalized returns existing keyword IDs keyed by normalized form.
func (r *PgKeywordRepository) FindByNormalized(ctx context.Context, normalized []string) (map[string]int64, error) {
	keys := uniqueStrings(normalized)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	ids, err := queryIDsByKey(ctx, r.db,
		`SELECT id, normalized_keyword FROM keywords WHERE normalized_keyword = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find keywords: %w", err)
	}
	return ids, nil
}

// BulkGetOrCreate retrieves or creates multiple keywords in a single statement.
func (r *PgKeywordRepository) BulkGetOrCreate(ctx context.Context, keywords []string) (map[string]int64, error) {
	// Normalize and filter out empty keywords
	var rows [][]interface{}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		normalized := domain.NormalizeKeyword(kw)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		rows = append(rows, []interface{}{strings.TrimSpace(kw), normalized})
	}

	ids, err := upsertReturningKeys(ctx, r.db,
		`INSERT INTO keywords (keyword, normalized_keyword)`,
		`ON CONFLICT (normalized_keyword) DO UPDATE SET
			normalized_keyword = keywords.normalized_keyword
		RETURNING id, normalized_keyword`,
		rows)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get or create keywords: %w", err)
	}
	return ids, nil
}

// queryIDsByKey runs a query returning (id, key) pairs for the given keys.
func queryIDsByKey(ctx context.Context, db DBTX, query string, keys []string) (map[string]int64, error) {
	rows, err := db.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIDsByKey(rows)
}

// upsertReturningKeys builds a multi-VALUES insert from rows and runs it with
// the given conflict clause, which must return (id, key) pairs.
func upsertReturningKeys(ctx context.Context, db DBTX, insert, conflict string, rows [][]interface{}) (map[string]int64, error) {
	if len(rows) == 0 {
		return map[string]int64{}, nil
	}

	var valueStrings []string
	var args []interface{}
	for _, row := range rows {
		placeholders := make([]string, len(row))
		for i, v := range row {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
	}

	query := fmt.Sprintf("%s\n\t\tVALUES %s\n\t\t%s", insert, strings.Join(valueStrings, ", "), conflict)

	result, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return collectIDsByKey(result)
}

func collectIDsByKey(rows pgx.Rows) (map[string]int64, error) {
	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id  int64
			key string
		)
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}
