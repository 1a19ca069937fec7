package port

import (
	"context"
	"time"
)

// RateDecision is the outcome of a sliding-window check.
type RateDecision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore counts attempts per identifier over a sliding window.
type RateLimitStore interface {
	Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (RateDecision, error)
}
