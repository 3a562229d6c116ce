package database

import (
	"context"
	"fmt"
	"time"
)

// unlockTimeout bounds pg_advisory_unlock when the caller's context is gone.
const unlockTimeout = 5 * time.Second

// AdvisoryLock is a session-level PostgreSQL advisory lock on one key. The
// lock lives on a pooled connection held until release.
type AdvisoryLock struct {
	db  *DB
	key int64
}

// AdvisoryLock returns the advisory lock for key.
func (db *DB) AdvisoryLock(key int64) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: key}
}

// TryLock takes the lock without waiting. ok is false when another session
// holds it.
func (l *AdvisoryLock) TryLock(ctx context.Context) (release func(), ok bool, err error) {
	conn, err := l.db.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock %d: %w", l.key, err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
			// Closing the session is the only other way to drop the lock.
			l.db.logger.Error().Err(err).Int64("lock_key", l.key).Msg("advisory unlock failed, closing connection")
			_ = conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}
	return release, true, nil
}
