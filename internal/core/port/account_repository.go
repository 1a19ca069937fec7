package port

import (
	"context"
	"time"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
)

// AccountRepository exposes persistence behavior for account credentials.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// UpdatePassword replaces the credential only while the stored hash still
	// equals previousHash; otherwise it returns repository.ErrConflict.
	UpdatePassword(ctx context.Context, id, previousHash, passwordHash, passwordAlgo string, changedAt time.Time) error
}
