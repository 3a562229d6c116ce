package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

func TestPgStoreFactory_BeginRunsStatementsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	store, err := NewPgStoreFactory(mock, zerolog.Nop()).Begin(ctx)
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO async_jobs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectExec(`DELETE FROM publications`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	id, err := store.Jobs().Schedule(ctx, domain.NewJob(domain.JobTypeRefreshAll, nil, nil, now))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = store.Publications().DeleteUnused(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_CloseRollsBackOpenTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	store, err := NewPgStoreFactory(mock, zerolog.Nop()).Begin(ctx)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM publications`).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectRollback()

	deleted, err := store.Publications().DeleteUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	require.NoError(t, store.Close(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_CloseWithoutStatementsIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	store, err := NewPgStoreFactory(mock, zerolog.Nop()).Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Close(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
