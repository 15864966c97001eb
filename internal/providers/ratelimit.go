package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a per-provider token bucket sized in requests per minute.
// After a 429 the bucket is drained and refills no earlier than the
// server's Retry-After.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastRefill time.Time
	blockUntil time.Time
	now        func() time.Time

	consumed int64
	waited   time.Duration
	last429  time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	r := &RateLimiter{perMinute: requestsPerMinute, now: time.Now}
	r.tokens = float64(requestsPerMinute)
	r.lastRefill = r.now()
	return r
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	return r.reserve() == 0
}

// reserve takes a token and returns 0, or returns how long to wait.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Before(r.blockUntil) {
		return r.blockUntil.Sub(now)
	}
	r.refill(now)
	if r.tokens >= 1 {
		r.tokens--
		r.consumed++
		return 0
	}
	return r.untilToken()
}

// Record429 drains the bucket and holds it closed for retryAfter.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.last429 = now
	r.tokens = 0
	r.lastRefill = now
	if retryAfter > 0 {
		r.blockUntil = now.Add(retryAfter)
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(r.now())
	var until time.Duration
	if r.tokens < 1 {
		until = r.untilToken()
	}
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TimeUntilToken:  until,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		Last429Time:     r.last429,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill)
	if elapsed <= 0 {
		return
	}
	r.lastRefill = now
	r.tokens += elapsed.Minutes() * float64(r.perMinute)
	if max := float64(r.perMinute); r.tokens > max {
		r.tokens = max
	}
}

func (r *RateLimiter) untilToken() time.Duration {
	perToken := time.Minute / time.Duration(r.perMinute)
	d := time.Duration((1 - r.tokens) * float64(perToken))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
