package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by all sends of one provider client.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows burst requests immediately and refills at
// requestsPerSecond. A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow blocks until a token is available or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
