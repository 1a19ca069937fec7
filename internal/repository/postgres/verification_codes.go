package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/repository"
)

const verificationCodesTable = "identity.verification_codes"

// VerificationCodeRepository keeps the per-account code slot as a single row;
// every transition is a conditional UPDATE checked through RowsAffected.
type VerificationCodeRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewVerificationCodeRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewVerificationCodeRepository(exec pgExecutor) *VerificationCodeRepository {
	return &VerificationCodeRepository{
		exec:    exec,
		builder: newBuilder(),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *VerificationCodeRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Replace upserts the slot, discarding attempts, consumption and claims of the previous code.
func (r *VerificationCodeRepository) Replace(ctx context.Context, code domain.VerificationCode, retention time.Duration) error {
	switch {
	case strings.TrimSpace(code.AccountID) == "":
		return errors.New("account id is required")
	case strings.TrimSpace(code.CodeHash) == "":
		return errors.New("code hash is required")
	case retention <= 0:
		return errors.New("retention must be positive")
	}

	if err := r.purgeStale(ctx); err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert(verificationCodesTable).
		Columns("account_id", "code_hash", "attempts", "created_at", "expires_at", "purge_after").
		Values(code.AccountID, code.CodeHash, 0, code.CreatedAt, code.ExpiresAt, code.CreatedAt.Add(retention)).
		Suffix(`ON CONFLICT (account_id) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			attempts = 0,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			purge_after = EXCLUDED.purge_after,
			consumed_at = NULL,
			claim_id = NULL,
			claimed_until = NULL`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build replace verification code sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("replace verification code: %w", err)
	}
	return nil
}

// purgeStale drops every slot past its retention.
func (r *VerificationCodeRepository) purgeStale(ctx context.Context) error {
	stmt, args, err := r.builder.Delete(verificationCodesTable).
		Where(squirrel.LtOrEq{"purge_after": r.now().UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge verification codes sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("purge verification codes: %w", err)
	}
	return nil
}

// Get returns the slot unless it is past its retention.
func (r *VerificationCodeRepository) Get(ctx context.Context, accountID string) (*domain.VerificationCode, error) {
	stmt, args, err := r.builder.
		Select("account_id", "code_hash", "attempts", "created_at", "expires_at", "consumed_at", "claim_id", "claimed_until").
		From(verificationCodesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		Where(squirrel.Gt{"purge_after": r.now().UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification code sql: %w", err)
	}

	var (
		code         domain.VerificationCode
		consumedAt   pgtype.Timestamptz
		claimID      pgtype.Text
		claimedUntil pgtype.Timestamptz
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&code.AccountID,
		&code.CodeHash,
		&code.Attempts,
		&code.CreatedAt,
		&code.ExpiresAt,
		&consumedAt,
		&claimID,
		&claimedUntil,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification code: %w", err)
	}
	if consumedAt.Valid {
		code.ConsumedAt = &consumedAt.Time
	}
	if claimID.Valid {
		code.ClaimID = claimID.String
	}
	if claimedUntil.Valid {
		code.ClaimedUntil = &claimedUntil.Time
	}

	return &code, nil
}

// ReserveAttempt increments the attempt counter while it is below limit.
func (r *VerificationCodeRepository) ReserveAttempt(ctx context.Context, accountID string, limit int) (int, error) {
	if limit <= 0 {
		return 0, errors.New("attempt limit must be positive")
	}

	stmt, args, err := r.builder.Update(verificationCodesTable).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Where(squirrel.Eq{"account_id": accountID}).
		Where(squirrel.Lt{"attempts": limit}).
		Suffix("RETURNING attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reserve attempt sql: %w", err)
	}

	var attempts int
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts)
	switch {
	case err == nil:
		return attempts, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return 0, fmt.Errorf("reserve verification attempt: %w", err)
	}

	// No row updated: the slot is either gone or exhausted.
	stmt, args, err = r.builder.Select("attempts").
		From(verificationCodesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select attempts sql: %w", err)
	}
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("load verification attempts: %w", err)
	}
	return attempts, repository.ErrConflict
}

// Claim reserves the slot for one in-flight change.
func (r *VerificationCodeRepository) Claim(ctx context.Context, accountID, codeHash, claimID string, lease time.Duration) error {
	if claimID == "" {
		return errors.New("claim id is required")
	}
	if lease <= 0 {
		return errors.New("lease must be positive")
	}

	now := r.now().UTC()
	stmt, args, err := r.builder.Update(verificationCodesTable).
		Set("claim_id", claimID).
		Set("claimed_until", now.Add(lease)).
		Where(squirrel.And{
			squirrel.Eq{"account_id": accountID},
			squirrel.Eq{"code_hash": codeHash},
			squirrel.Eq{"consumed_at": nil},
			squirrel.Or{
				squirrel.Eq{"claim_id": nil},
				squirrel.LtOrEq{"claimed_until": now},
			},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build claim verification code sql: %w", err)
	}

	return r.conditional(ctx, "claim verification code", stmt, args)
}

// Commit marks the claimed slot consumed.
func (r *VerificationCodeRepository) Commit(ctx context.Context, accountID, claimID string) error {
	stmt, args, err := r.builder.Update(verificationCodesTable).
		Set("consumed_at", r.now().UTC()).
		Set("claim_id", nil).
		Set("claimed_until", nil).
		Where(squirrel.Eq{"account_id": accountID, "claim_id": claimID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build commit verification code sql: %w", err)
	}

	return r.conditional(ctx, "commit verification code", stmt, args)
}

// Release drops the claim so the code can be presented again.
func (r *VerificationCodeRepository) Release(ctx context.Context, accountID, claimID string) error {
	stmt, args, err := r.builder.Update(verificationCodesTable).
		Set("claim_id", nil).
		Set("claimed_until", nil).
		Where(squirrel.Eq{"account_id": accountID, "claim_id": claimID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release verification code sql: %w", err)
	}

	return r.conditional(ctx, "release verification code", stmt, args)
}

func (r *VerificationCodeRepository) conditional(ctx context.Context, op, stmt string, args []any) error {
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

var _ port.VerificationCodeStore = (*VerificationCodeRepository)(nil)
