package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LazyBeginAndCommit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	session := NewSession(mock, zerolog.Nop())
	assert.False(t, session.InTransaction())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO journals").
		WithArgs("Nature", "nature").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = session.Exec(ctx, "INSERT INTO journals (name, normalized_name) VALUES ($1, $2)", "Nature", "nature")
	require.NoError(t, err)
	assert.True(t, session.InTransaction())

	require.NoError(t, session.Commit(ctx))
	assert.False(t, session.InTransaction())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_CommitStartsNextTransactionOnDemand(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	session := NewSession(mock, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM raw_data").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(pgxmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err = session.Exec(ctx, "DELETE FROM raw_data")
	require.NoError(t, err)
	require.NoError(t, session.Commit(ctx))

	var n int
	require.NoError(t, session.QueryRow(ctx, "SELECT 1").Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, session.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_CommitWithoutWorkIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	session := NewSession(mock, zerolog.Nop())

	assert.NoError(t, session.Commit(context.Background()))
	assert.NoError(t, session.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	session := NewSession(mock, zerolog.Nop())
	beginErr := errors.New("too many connections")

	mock.ExpectBegin().WillReturnError(beginErr)

	var n int
	err = session.QueryRow(ctx, "SELECT 1").Scan(&n)
	require.Error(t, err)
	assert.ErrorIs(t, err, beginErr)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	assert.False(t, session.InTransaction())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	session := NewSession(mock, zerolog.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sources").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	_, err = session.Exec(ctx, "UPDATE sources SET error = true")
	require.NoError(t, err)

	require.NoError(t, session.Close(ctx))
	assert.NoError(t, session.Close(ctx), "close is idempotent")

	_, err = session.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, session.Commit(ctx), ErrSessionClosed)

	batch := &pgx.Batch{}
	batch.Queue("SELECT 1")
	br := session.SendBatch(ctx, batch)
	_, err = br.Exec()
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
