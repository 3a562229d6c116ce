package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCache(t *testing.T) {
	t.Run("disabled cache is nil and inert", func(t *testing.T) {
		c := NewResponseCache(0, time.Minute)
		assert.Nil(t, c)
		assert.Nil(t, NewResponseCache(10, 0))

		c.Add("k", []byte("v"))
		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.Zero(t, c.Len())
	})

	t.Run("stores and evicts by size", func(t *testing.T) {
		c := NewResponseCache(2, time.Minute)
		c.Add("a", []byte("1"))
		c.Add("b", []byte("2"))
		c.Add("c", []byte("3"))

		_, ok := c.Get("a")
		assert.False(t, ok)
		v, ok := c.Get("c")
		require.True(t, ok)
		assert.Equal(t, []byte("3"), v)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expires after ttl", func(t *testing.T) {
		c := NewResponseCache(2, 20*time.Millisecond)
		c.Add("a", []byte("1"))
		time.Sleep(60 * time.Millisecond)

		_, ok := c.Get("a")
		assert.False(t, ok)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("burst then wait", func(t *testing.T) {
		l := NewRateLimiter(1000, 2)
		assert.True(t, l.Allow())
		assert.True(t, l.Allow())
		require.NoError(t, l.Wait(context.Background()))
	})

	t.Run("canceled context", func(t *testing.T) {
		l := NewRateLimiter(0.001, 1)
		require.True(t, l.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, l.Wait(ctx))
	})

	t.Run("pause blocks allow until it expires", func(t *testing.T) {
		l := NewRateLimiter(1000, 5)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		l.PauseFor(30 * time.Second)
		assert.False(t, l.Allow())

		l.PauseFor(time.Second)
		now = now.Add(10 * time.Second)
		assert.False(t, l.Allow(), "shorter pause must not shorten the window")

		now = now.Add(25 * time.Second)
		assert.True(t, l.Allow())
	})

	t.Run("wait honors pause and context", func(t *testing.T) {
		l := NewRateLimiter(1000, 5)
		l.PauseFor(time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("short pause then proceeds", func(t *testing.T) {
		l := NewRateLimiter(1000, 5)
		l.PauseFor(15 * time.Millisecond)

		start := time.Now()
		require.NoError(t, l.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})
}
