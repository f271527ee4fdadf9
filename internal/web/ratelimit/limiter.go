// Package ratelimit throttles repeated requests per key, such as login
// attempts per client address. Limits are held in memory or in Redis.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed bool
	// Limit is the number of requests a key may make per window
	Limit     int
	Remaining int
	// ResetAt is when the key may make its next request
	ResetAt time.Time
}

// RetryAfter is the wait before the next attempt, in whole seconds and never
// less than one
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now).Round(time.Second)
	if wait < time.Second {
		return time.Second
	}
	return wait
}
