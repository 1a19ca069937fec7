package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/NT912/Finwise---final-sub002/internal/core/port"
)

type fakeRateLimitStore struct {
	decision port.RateDecision
	err      error

	keys   []string
	limits []int
}

func (f *fakeRateLimitStore) Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (port.RateDecision, error) {
	f.keys = append(f.keys, identifier)
	f.limits = append(f.limits, limit)
	return f.decision, f.err
}

func newLimitedRouter(t *testing.T, store *fakeRateLimitStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(store, time.Second, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "u1")
		c.Next()
	})
	router.Use(limiter.RateLimit(RateLimitRule{
		Name:       "password_change",
		Limit:      5,
		Window:     time.Minute,
		Identifier: SubjectIdentifier(),
	}))
	router.POST("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	store := &fakeRateLimitStore{decision: port.RateDecision{Allowed: true, Count: 3, Remaining: 2}}
	router := newLimitedRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.keys) != 1 || store.keys[0] != "password_change:u1" {
		t.Fatalf("unexpected keys %v", store.keys)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining header 2, got %q", got)
	}
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no retry-after header, got %q", got)
	}
}

func TestRateLimiterBlocksWhenLimitExceeded(t *testing.T) {
	store := &fakeRateLimitStore{decision: port.RateDecision{Allowed: false, Count: 5, RetryAfter: 30 * time.Second}}
	router := newLimitedRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected retry-after 30, got %q", got)
	}

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Success || body.Code != "RateLimited" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	store := &fakeRateLimitStore{err: errors.New("redis down")}
	router := newLimitedRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
}

func TestRateLimiterSkipsRequestsWithoutIdentifier(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{decision: port.RateDecision{Allowed: false}}
	limiter := NewRateLimiter(store, time.Second, nil)

	router := gin.New()
	router.Use(limiter.RateLimit(RateLimitRule{Name: "password_change", Limit: 1, Window: time.Minute, Identifier: SubjectIdentifier()}))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusOK || len(store.keys) != 0 {
		t.Fatalf("expected pass-through without subject, got %d and keys %v", rr.Code, store.keys)
	}
}
