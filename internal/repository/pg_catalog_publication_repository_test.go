package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

func TestPgCatalogPublicationRepository_FindPublicationIDs(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT publication_id, catalog_identifier FROM catalog_publications WHERE catalog = \$1 AND catalog_identifier = ANY\(\$2\)`).
		WithArgs("scopus", []string{"2-s2.0-1", "2-s2.0-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"publication_id", "catalog_identifier"}).
			AddRow(int64(7), "2-s2.0-2"))

	ids, err := NewPgCatalogPublicationRepository(mock).FindPublicationIDs(ctx, "scopus", []string{"2-s2.0-1", "2-s2.0-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2-s2.0-2": 7}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCatalogPublicationRepository_ReplaceKeywords(t *testing.T) {
	ctx := context.Background()

	t.Run("clears and inserts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM catalog_publication_keywords WHERE catalog_publication_id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectExec(`INSERT INTO catalog_publication_keywords \(catalog_publication_id, keyword_id\)`).
			WithArgs(int64(3), []int64{1, 2}).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))

		require.NoError(t, NewPgCatalogPublicationRepository(mock).ReplaceKeywords(ctx, 3, []int64{1, 2}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set only clears", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM catalog_publication_keywords`).
			WithArgs(int64(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		require.NoError(t, NewPgCatalogPublicationRepository(mock).ReplaceKeywords(ctx, 3, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCatalogPublicationRepository_ReplaceAuthorships(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds rows and affiliation links", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		authorships := []*domain.Authorship{
			{SourceID: 100, Ordinal: 0, AffiliationIDs: []int64{7, 8}},
			{SourceID: 101, Ordinal: 2},
		}

		mock.ExpectExec(`DELETE FROM catalog_publication_source_affiliations`).
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`DELETE FROM catalog_publication_sources WHERE catalog_publication_id = \$1`).
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		expectedBatch := mock.ExpectBatch()
		expectedBatch.ExpectQuery(`INSERT INTO catalog_publication_sources`).
			WithArgs(int64(9), int64(100), 0).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(50)))
		expectedBatch.ExpectQuery(`INSERT INTO catalog_publication_sources`).
			WithArgs(int64(9), int64(101), 2).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(51)))
		mock.ExpectExec(`INSERT INTO catalog_publication_source_affiliations`).
			WithArgs([]int64{50, 50}, []int64{7, 8}).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))

		err = NewPgCatalogPublicationRepository(mock).ReplaceAuthorships(ctx, 9, authorships)
		require.NoError(t, err)
		assert.Equal(t, int64(50), authorships[0].ID)
		assert.Equal(t, int64(51), authorships[1].ID)
		assert.Equal(t, int64(9), authorships[1].CatalogPublicationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty authorship clears only", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM catalog_publication_source_affiliations`).
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`DELETE FROM catalog_publication_sources`).
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, NewPgCatalogPublicationRepository(mock).ReplaceAuthorships(ctx, 9, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps clear errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM catalog_publication_source_affiliations`).
			WithArgs(int64(9)).
			WillReturnError(errors.New("connection reset"))

		err = NewPgCatalogPublicationRepository(mock).ReplaceAuthorships(ctx, 9, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to clear authorship affiliations")
	})
}
