package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/NT912/Finwise---final-sub002/internal/core/port"
)

// KEYS[1] window set; ARGV now_ms, threshold_ms, limit, member, window_ms
// Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local limit = tonumber(ARGV[3])
local count = redis.call('ZCARD', KEYS[1])
local oldest = 0
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
if count >= limit then
	return {0, count, oldest}
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
if oldest == 0 then
	oldest = tonumber(ARGV[1])
end
return {1, count + 1, oldest}
`)

// RateLimitRepository keeps sliding-window attempt timestamps in Redis sorted sets.
type RateLimitRepository struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRepository constructs a repository using the provided Redis client and key prefix.
func NewRateLimitRepository(client *redis.Client, keyPrefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, prefix: keyPrefix}
}

// Hit records an attempt for identifier unless the window is already full.
func (r *RateLimitRepository) Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (port.RateDecision, error) {
	if window <= 0 {
		return port.RateDecision{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.RateDecision{Allowed: true}, nil
	}

	raw, err := slidingWindowScript.Run(ctx, r.client, []string{r.key(identifier)},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		strconv.Itoa(limit),
		uuid.NewString(),
		strconv.FormatInt(window.Milliseconds(), 10),
	).Int64Slice()
	if err != nil {
		return port.RateDecision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(raw) != 3 {
		return port.RateDecision{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(raw))
	}

	decision := port.RateDecision{
		Allowed:   raw[0] == 1,
		Count:     int(raw[1]),
		Remaining: limit - int(raw[1]),
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !decision.Allowed && raw[2] > 0 {
		reset := time.UnixMilli(raw[2]).Add(window)
		if reset.After(now) {
			decision.RetryAfter = reset.Sub(now)
		}
	}
	return decision, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.prefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
