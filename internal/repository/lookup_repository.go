package repository

import (
	"context"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

// JournalRepository handles journal lookups keyed by normalized name.
type JournalRepository interface {
	// FindByNormalizedNames returns the IDs of existing journals keyed by
	// normalized name. Missing names are absent from the map.
	FindByNormalizedNames(ctx context.Context, normalized []string) (map[string]int64, error)

	// BulkGetOrCreate creates the named journals, adopting rows that already
	// exist. The result is keyed by normalized name; empty names are skipped.
	BulkGetOrCreate(ctx context.Context, names []string) (map[string]int64, error)

	// Get retrieves a journal by ID.
	// Returns domain.ErrNotFound if no matching journal exists.
	Get(ctx context.Context, id int64) (*domain.Journal, error)
}

// SubtypeRepository handles publication subtype lookups keyed by description.
type SubtypeRepository interface {
	// FindByDescriptions returns the IDs of existing subtypes keyed by description.
	FindByDescriptions(ctx context.Context, descriptions []string) (map[string]int64, error)

	// BulkGetOrCreate creates the given subtypes, adopting rows that already
	// exist. The result is keyed by description.
	BulkGetOrCreate(ctx context.Context, subtypes []*domain.Subtype) (map[string]int64, error)

	// Get retrieves a subtype by ID.
	// Returns domain.ErrNotFound if no matching subtype exists.
	Get(ctx context.Context, id int64) (*domain.Subtype, error)
}

// SponsorRepository handles funding sponsor lookups keyed by normalized name.
type SponsorRepository interface {
	// FindByNormalizedNames returns the IDs of existing sponsors keyed by
	// normalized name.
	FindByNormalizedNames(ctx context.Context, normalized []string) (map[string]int64, error)

	// BulkGetOrCreate creates the given sponsors, adopting rows that already
	// exist. IsNIHR is only written on creation. The result is keyed by
	// normalized name.
	BulkGetOrCreate(ctx context.Context, sponsors []*domain.Sponsor) (map[string]int64, error)
}

// KeywordRepository handles keyword lookups keyed by folded keyword.
type KeywordRepository interface {
	// FindByNormalized returns the IDs of existing keywords keyed by their
	// normalized form, as produced by domain.NormalizeKeyword.
	FindByNormalized(ctx context.Context, normalized []string) (map[string]int64, error)

	// BulkGetOrCreate retrieves or creates multiple keywords in a single statement.
	// The result is keyed by normalized form; empty keywords are skipped.
	BulkGetOrCreate(ctx context.Context, keywords []string) (map[string]int64, error)
}
