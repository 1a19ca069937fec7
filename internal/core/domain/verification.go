package domain

import "time"

// VerificationCode is the single active out-of-band code slot of an account.
// Only the hash of the code is persisted.
type VerificationCode struct {
	AccountID    string
	CodeHash     string
	Attempts     int
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	ClaimID      string
	ClaimedUntil *time.Time
}

// IsExpired reports whether the code has passed its expiry window.
func (v VerificationCode) IsExpired(at time.Time) bool {
	return at.After(v.ExpiresAt)
}

// IsConsumed reports whether the code already completed a change.
func (v VerificationCode) IsConsumed() bool {
	return v.ConsumedAt != nil
}

// IsClaimed reports whether another change currently holds the code.
func (v VerificationCode) IsClaimed(at time.Time) bool {
	return v.ClaimID != "" && v.ClaimedUntil != nil && v.ClaimedUntil.After(at)
}
