package market

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// RateLimiter tracks a weight budget over a rolling window, matching the
// exchange's weight-based limits. All workers of a scan share one limiter
// so parallel asset fetches cannot blow the budget.
type RateLimiter struct {
	mu sync.Mutex

	maxWeight     int
	window        time.Duration
	currentWeight int
	windowStart   time.Time

	// Set when the exchange tells us to back off (HTTP 429)
	backoffUntil time.Time
}

// NewRateLimiter creates a limiter with the given weight budget per window
func NewRateLimiter(maxWeight int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxWeight:   maxWeight,
		window:      window,
		windowStart: time.Now(),
	}
}

// Wait blocks until the request weight fits in the current window or the
// context is cancelled
func (rl *RateLimiter) Wait(ctx context.Context, weight int) error {
	for {
		wait := rl.tryAcquire(weight)
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire reserves weight and returns how long to wait if it does not fit
func (rl *RateLimiter) tryAcquire(weight int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if until := rl.backoffUntil; now.Before(until) {
		return until.Sub(now)
	}

	if now.Sub(rl.windowStart) >= rl.window {
		rl.currentWeight = 0
		rl.windowStart = now
	}

	if rl.currentWeight+weight > rl.maxWeight {
		return rl.windowStart.Add(rl.window).Sub(now)
	}

	rl.currentWeight += weight
	return 0
}

// Backoff pauses all requests after a 429 response. retryAfter is the
// Retry-After header value in seconds, possibly empty.
func (rl *RateLimiter) Backoff(retryAfter string) {
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds <= 0 {
		seconds = 30
	}

	rl.mu.Lock()
	rl.backoffUntil = time.Now().Add(time.Duration(seconds) * time.Second)
	rl.mu.Unlock()
}
