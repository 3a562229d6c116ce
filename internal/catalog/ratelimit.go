package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles every request to one catalog. Besides the token
// bucket it holds a pause window: after a 429 all callers wait out the
// catalog's Retry-After, not only the request that received it.
type RateLimiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
	now         func() time.Time
}

// NewRateLimiter allows ratePerSecond sustained requests with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		now:     time.Now,
	}
}

// Wait blocks until the pause window has passed and a token is available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.pauseRemaining(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r.pauseRemaining() > 0 {
		return false
	}
	return r.limiter.Allow()
}

// PauseFor holds every caller for d. A shorter pause never cuts an
// existing one short.
func (r *RateLimiter) PauseFor(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(d); until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

func (r *RateLimiter) pauseRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pausedUntil.Sub(r.now())
}
