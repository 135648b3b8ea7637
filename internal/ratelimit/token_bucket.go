package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket bounds how often unknown-id patches may force a full snapshot
// refetch: a burst of patches for a job created moments ago must collapse
// into one resync, not a fetch per patch. It is a thin wrapper over
// rate.Limiter with the domain's naming.
type TokenBucket struct {
	rl *rate.Limiter
}

// NewTokenBucket constructs a full bucket with the provided burst capacity
// and refill rate.
func NewTokenBucket(burst int, refillPerSecond float64) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{rl: rate.NewLimiter(rate.Limit(refillPerSecond), burst)}
}

// Allow consumes one token if available.
func (b *TokenBucket) Allow() bool {
	return b.rl.Allow()
}

// Reserve consumes the next token regardless of availability and returns how
// long until it may be used. Callers arm a deferred action with the delay
// rather than dropping the request.
func (b *TokenBucket) Reserve() time.Duration {
	return b.rl.Reserve().Delay()
}
