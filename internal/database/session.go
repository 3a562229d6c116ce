package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("session closed")

// Session is an explicit unit of work. It implements DBTX over a lazily
// started transaction: the first statement after construction, Commit or
// Rollback begins a new transaction.
//
// A Session is not safe for concurrent use.
type Session struct {
	beginner TxBeginner
	tx       pgx.Tx
	closed   bool
	logger   zerolog.Logger
}

// Compile-time check that *Session implements DBTX.
var _ DBTX = (*Session)(nil)

// NewSession creates a session that begins transactions from beginner.
func NewSession(beginner TxBeginner, logger zerolog.Logger) *Session {
	return &Session{
		beginner: beginner,
		logger:   logger,
	}
}

func (s *Session) current(ctx context.Context) (pgx.Tx, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// InTransaction reports whether a transaction is currently open.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Commit commits the open transaction, if any.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the open transaction, if any.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Close rolls back any open transaction and marks the session unusable.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	err := s.Rollback(ctx)
	s.closed = true
	if err != nil {
		s.logger.Warn().Err(err).Msg("rollback on session close failed")
	}
	return err
}

// Exec executes a query without returning any rows.
func (s *Session) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	tx, err := s.current(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return tx.Exec(ctx, sql, args...)
}

// Query executes a query that returns rows.
func (s *Session) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	tx, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return tx.Query(ctx, sql, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	tx, err := s.current(ctx)
	if err != nil {
		return errRow{err: err}
	}
	return tx.QueryRow(ctx, sql, args...)
}

// SendBatch sends a batch of queries to the database.
func (s *Session) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	tx, err := s.current(ctx)
	if err != nil {
		return errBatchResults{err: err}
	}
	return tx.SendBatch(ctx, b)
}

// errRow defers a begin failure to Scan.
type errRow struct {
	err error
}

func (r errRow) Scan(...interface{}) error {
	return r.err
}

// errBatchResults defers a begin failure to the batch readers.
type errBatchResults struct {
	err error
}

func (b errBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, b.err
}

func (b errBatchResults) Query() (pgx.Rows, error) {
	return nil, b.err
}

func (b errBatchResults) QueryRow() pgx.Row {
	return errRow{err: b.err}
}

func (b errBatchResults) Close() error {
	return b.err
}
