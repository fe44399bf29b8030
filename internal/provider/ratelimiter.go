package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum spacing between outbound calls. Callers
// are served one at a time in no particular order.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that allows one call per interval with
// no burst.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the interval since the previous call has elapsed. It
// returns an error without consuming a slot if ctx ends first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
