package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/response"
	"github.com/NT912/Finwise---final-sub002/internal/usecase"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

type RateLimiter struct {
	store   port.RateLimitStore
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper. Each store
// call is bounded by timeout; a failing store lets the request through.
func NewRateLimiter(store port.RateLimitStore, timeout time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	return &RateLimiter{
		store:   store,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// SubjectIdentifier scopes limits to the authenticated subject. It must run
// after RequireAuth.
func SubjectIdentifier() IdentifierFunc {
	return GetAuthenticatedUserID
}

// RateLimit returns a Gin middleware enforcing the provided rules.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *port.RateDecision
		var tightestLimit int

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			decision, err := rl.hit(c.Request.Context(), rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", identifier),
					zap.Error(err),
				)
				continue
			}

			if !decision.Allowed {
				rl.applyHeaders(c, rule.Limit, decision)
				response.Error(c, rl.logger, &usecase.RateLimitExceededError{Scope: rule.Name, RetryAfter: decision.RetryAfter})
				return
			}

			if tightest == nil || decision.Remaining < tightest.Remaining {
				snapshot := decision
				tightest = &snapshot
				tightestLimit = rule.Limit
			}
		}

		if tightest != nil {
			rl.applyHeaders(c, tightestLimit, *tightest)
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, rule RateLimitRule, identifier string, now time.Time) (port.RateDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s", rule.Name, identifier)
	return rl.store.Hit(ctx, key, rule.Limit, rule.Window, now)
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, limit int, decision port.RateDecision) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
}
