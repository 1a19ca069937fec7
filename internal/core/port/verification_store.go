package port

import (
	"context"
	"time"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
)

// VerificationCodeStore keeps the single verification-code slot of each
// account in a store shared by every service instance. All mutations are
// atomic on the store side.
type VerificationCodeStore interface {
	// Replace overwrites the account's slot with a fresh, unconsumed code.
	Replace(ctx context.Context, code domain.VerificationCode, retention time.Duration) error
	// Get returns the slot or repository.ErrNotFound.
	Get(ctx context.Context, accountID string) (*domain.VerificationCode, error)
	// ReserveAttempt counts one presentation of a code against the slot
	// and returns the new count. It never lets the counter pass limit: an
	// exhausted slot returns repository.ErrConflict, a missing one
	// repository.ErrNotFound.
	ReserveAttempt(ctx context.Context, accountID string, limit int) (int, error)
	// Claim reserves the slot for one change while it still holds codeHash,
	// is unconsumed, and carries no live claim. A lost race returns
	// repository.ErrConflict.
	Claim(ctx context.Context, accountID, codeHash, claimID string, lease time.Duration) error
	// Commit marks a claimed slot consumed.
	Commit(ctx context.Context, accountID, claimID string) error
	// Release drops a claim so the code can be presented again.
	Release(ctx context.Context, accountID, claimID string) error
}

// CodeMailer delivers verification codes out of band.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, msg domain.VerificationCodeMessage) error
}
