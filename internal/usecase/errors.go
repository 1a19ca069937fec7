package usecase

import (
	"fmt"
	"time"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
)

// RateLimitExceededError reports a rejected request together with the time
// until the window admits another one. It carries domain.KindRateLimited.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
}

// Unwrap exposes the tagged kind to errors.Is and errors.As.
func (e *RateLimitExceededError) Unwrap() error {
	return domain.ErrRateLimited
}
