package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

func TestPgJournalRepository_FindByNormalizedNames(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ids keyed by normalized name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, normalized_name FROM journals WHERE normalized_name = ANY\(\$1\)`).
			WithArgs([]string{"nature", "the lancet"}).
			WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_name"}).
				AddRow(int64(1), "nature"))

		ids, err := NewPgJournalRepository(mock).FindByNormalizedNames(ctx, []string{"nature", "the lancet", "nature", ""})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"nature": 1}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips the query for empty input", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ids, err := NewPgJournalRepository(mock).FindByNormalizedNames(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgJournalRepository_BulkGetOrCreate(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO journals \(name, normalized_name\)\s+VALUES \(\$1, \$2\), \(\$3, \$4\)\s+ON CONFLICT \(normalized_name\) DO UPDATE SET`).
		WithArgs("Nature", "nature", "The  Lancet", "the lancet").
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_name"}).
			AddRow(int64(1), "nature").
			AddRow(int64(2), "the lancet"))

	ids, err := NewPgJournalRepository(mock).BulkGetOrCreate(ctx, []string{" Nature ", "NATURE", "The  Lancet", "  "})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"nature": 1, "the lancet": 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgJournalRepository_Get(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, normalized_name, created_at FROM journals WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPgJournalRepository(mock).Get(ctx, 9)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPgSubtypeRepository_BulkGetOrCreate(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO subtypes \(code, description\)`).
		WithArgs("ar", "Article").
		WillReturnRows(pgxmock.NewRows([]string{"id", "description"}).AddRow(int64(4), "Article"))

	ids, err := NewPgSubtypeRepository(mock).BulkGetOrCreate(ctx, []*domain.Subtype{
		{Code: "ar", Description: "Article"},
		{Code: "ar", Description: "Article"},
		{Code: "x", Description: ""},
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Article": 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSponsorRepository_BulkGetOrCreate(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO sponsors \(name, normalized_name, is_nihr\)`).
		WithArgs("National Institute for Health Research", "national institute for health research", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_name"}).
			AddRow(int64(8), "national institute for health research"))

	ids, err := NewPgSponsorRepository(mock).BulkGetOrCreate(ctx, []*domain.Sponsor{
		{Name: "National Institute for Health Research", IsNIHR: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), ids["national institute for health research"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgKeywordRepository_BulkGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("folds case and diacritics", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO keywords \(keyword, normalized_keyword\)`).
			WithArgs("Café", "cafe").
			WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_keyword"}).AddRow(int64(2), "cafe"))

		ids, err := NewPgKeywordRepository(mock).BulkGetOrCreate(ctx, []string{"Café", "CAFE", "cafe"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"cafe": 2}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty map without statements", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ids, err := NewPgKeywordRepository(mock).BulkGetOrCreate(ctx, []string{"", "   "})
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`INSERT INTO keywords`).
			WithArgs("genomics", "genomics").
			WillReturnError(errors.New("boom"))

		_, err = NewPgKeywordRepository(mock).BulkGetOrCreate(ctx, []string{"genomics"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to bulk get or create keywords")
		assert.ErrorContains(t, err, "boom")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
