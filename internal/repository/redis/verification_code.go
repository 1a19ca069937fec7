package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/repository"
)

const (
	defaultVerificationPrefix = "finwise:verification"

	fieldCodeHash     = "code_hash"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldAttempts     = "attempts"
	fieldConsumedAt   = "consumed_at"
	fieldClaimID      = "claim_id"
	fieldClaimedUntil = "claimed_until"
)

// Claim outcomes returned by claimScript.
const (
	claimOK       = "ok"
	claimMissing  = "missing"
	claimMismatch = "mismatch"
	claimConsumed = "consumed"
	claimHeld     = "claimed"
)

// KEYS[1] slot; ARGV code_hash, claim_id, now_ms, claimed_until_ms
var claimScript = red.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 'missing'
end
local f = redis.call('HMGET', KEYS[1], 'code_hash', 'consumed_at', 'claim_id', 'claimed_until')
if f[1] ~= ARGV[1] then
	return 'mismatch'
end
if f[2] and f[2] ~= '' then
	return 'consumed'
end
if f[3] and f[3] ~= '' and tonumber(f[4] or '0') > tonumber(ARGV[3]) then
	return 'claimed'
end
redis.call('HSET', KEYS[1], 'claim_id', ARGV[2], 'claimed_until', ARGV[4])
return 'ok'
`)

// KEYS[1] slot; ARGV claim_id, consumed_at
var commitScript = red.NewScript(`
local claim = redis.call('HGET', KEYS[1], 'claim_id')
if not claim or claim ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[2])
redis.call('HDEL', KEYS[1], 'claim_id', 'claimed_until')
return 1
`)

// KEYS[1] slot; ARGV claim_id
var releaseScript = red.NewScript(`
local claim = redis.call('HGET', KEYS[1], 'claim_id')
if not claim or claim ~= ARGV[1] then
	return 0
end
redis.call('HDEL', KEYS[1], 'claim_id', 'claimed_until')
return 1
`)

// KEYS[1] slot; ARGV limit
var attemptScript = red.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local n = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if n >= tonumber(ARGV[1]) then
	return -2
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// VerificationCodeStore keeps one verification-code hash per account in Redis.
type VerificationCodeStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewVerificationCodeStore constructs a store with the provided Redis client and key prefix.
func NewVerificationCodeStore(client *red.Client, keyPrefix string) *VerificationCodeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultVerificationPrefix
	}

	return &VerificationCodeStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationCodeStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Replace overwrites the account slot in a single MULTI block.
func (s *VerificationCodeStore) Replace(ctx context.Context, code domain.VerificationCode, retention time.Duration) error {
	key := s.key(code.AccountID)
	switch {
	case key == "":
		return errors.New("account id is required")
	case strings.TrimSpace(code.CodeHash) == "":
		return errors.New("code hash is required")
	case retention <= 0:
		return errors.New("retention must be positive")
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:  code.CodeHash,
		fieldCreatedAt: strconv.FormatInt(code.CreatedAt.UnixMilli(), 10),
		fieldExpiresAt: strconv.FormatInt(code.ExpiresAt.UnixMilli(), 10),
		fieldAttempts:  "0",
	})
	pipe.Expire(ctx, key, retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis replace verification code: %w", err)
	}
	return nil
}

// Get loads the account slot.
func (s *VerificationCodeStore) Get(ctx context.Context, accountID string) (*domain.VerificationCode, error) {
	key := s.key(accountID)
	if key == "" {
		return nil, errors.New("account id is required")
	}

	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall verification code: %w", err)
	}
	if len(values) == 0 || strings.TrimSpace(values[fieldCodeHash]) == "" {
		return nil, repository.ErrNotFound
	}

	code := domain.VerificationCode{
		AccountID: strings.TrimSpace(accountID),
		CodeHash:  values[fieldCodeHash],
		ClaimID:   values[fieldClaimID],
	}

	if code.CreatedAt, err = parseMillis(values[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if code.ExpiresAt, err = parseMillis(values[fieldExpiresAt]); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			code.Attempts = v
		}
	}
	if raw := values[fieldConsumedAt]; raw != "" {
		consumedAt, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("parse consumed_at: %w", err)
		}
		code.ConsumedAt = &consumedAt
	}
	if raw := values[fieldClaimedUntil]; raw != "" {
		claimedUntil, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("parse claimed_until: %w", err)
		}
		code.ClaimedUntil = &claimedUntil
	}

	return &code, nil
}

// ReserveAttempt increments the attempt counter up to limit without
// recreating an evicted slot.
func (s *VerificationCodeStore) ReserveAttempt(ctx context.Context, accountID string, limit int) (int, error) {
	key := s.key(accountID)
	switch {
	case key == "":
		return 0, errors.New("account id is required")
	case limit <= 0:
		return 0, errors.New("attempt limit must be positive")
	}

	count, err := attemptScript.Run(ctx, s.client, []string{key}, limit).Int()
	if err != nil {
		return 0, fmt.Errorf("redis reserve verification attempt: %w", err)
	}
	switch count {
	case -1:
		return 0, repository.ErrNotFound
	case -2:
		return limit, repository.ErrConflict
	}
	return count, nil
}

// Claim reserves the slot for a single in-flight change.
func (s *VerificationCodeStore) Claim(ctx context.Context, accountID, codeHash, claimID string, lease time.Duration) error {
	key := s.key(accountID)
	switch {
	case key == "":
		return errors.New("account id is required")
	case claimID == "":
		return errors.New("claim id is required")
	case lease <= 0:
		return errors.New("lease must be positive")
	}

	now := s.now().UTC()
	outcome, err := claimScript.Run(ctx, s.client, []string{key},
		codeHash,
		claimID,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(lease).UnixMilli(), 10),
	).Text()
	if err != nil {
		return fmt.Errorf("redis claim verification code: %w", err)
	}

	switch outcome {
	case claimOK:
		return nil
	case claimMissing:
		return repository.ErrNotFound
	case claimMismatch, claimConsumed, claimHeld:
		return fmt.Errorf("%w: %s", repository.ErrConflict, outcome)
	default:
		return fmt.Errorf("redis claim verification code: unexpected outcome %q", outcome)
	}
}

// Commit marks the claimed slot consumed.
func (s *VerificationCodeStore) Commit(ctx context.Context, accountID, claimID string) error {
	key := s.key(accountID)
	if key == "" {
		return errors.New("account id is required")
	}

	consumedAt := strconv.FormatInt(s.now().UTC().UnixMilli(), 10)
	ok, err := commitScript.Run(ctx, s.client, []string{key}, claimID, consumedAt).Int()
	if err != nil {
		return fmt.Errorf("redis commit verification code: %w", err)
	}
	if ok == 0 {
		return repository.ErrConflict
	}
	return nil
}

// Release returns a claimed slot to the active state.
func (s *VerificationCodeStore) Release(ctx context.Context, accountID, claimID string) error {
	key := s.key(accountID)
	if key == "" {
		return errors.New("account id is required")
	}

	ok, err := releaseScript.Run(ctx, s.client, []string{key}, claimID).Int()
	if err != nil {
		return fmt.Errorf("redis release verification code: %w", err)
	}
	if ok == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (s *VerificationCodeStore) key(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, accountID)
}

func parseMillis(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v).UTC(), nil
}

var _ port.VerificationCodeStore = (*VerificationCodeStore)(nil)
