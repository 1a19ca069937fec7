package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
	"github.com/NT912/Finwise---final-sub002/internal/infra/security"
	"github.com/NT912/Finwise---final-sub002/internal/infra/telemetry"
	"github.com/NT912/Finwise---final-sub002/internal/repository"
)

const (
	tracerName = "github.com/NT912/Finwise---final-sub002/internal/usecase"

	codeRequestRateLimitScope = "verification_code"
)

// CredentialSettings holds the tunables of the credential coordinator.
type CredentialSettings struct {
	CodeLength        int
	CodeTTL           time.Duration
	Retention         time.Duration
	ClaimLease        time.Duration
	MaxAttempts       int
	MinPasswordLength int
	StoreTimeout      time.Duration
	MailerTimeout     time.Duration
	RateLimitWindow   time.Duration
	CodeRequestLimit  int
}

// CredentialSettingsFromConfig extracts coordinator settings from the application config.
func CredentialSettingsFromConfig(cfg *config.AppConfig) CredentialSettings {
	return CredentialSettings{
		CodeLength:        cfg.Verification.CodeLength,
		CodeTTL:           cfg.Verification.CodeTTL,
		Retention:         cfg.Verification.Retention,
		ClaimLease:        cfg.Verification.ClaimLease,
		MaxAttempts:       cfg.Verification.MaxAttempts,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		StoreTimeout:      cfg.Timeouts.Store,
		MailerTimeout:     cfg.Timeouts.Mailer,
		RateLimitWindow:   cfg.RateLimit.WindowDuration,
		CodeRequestLimit:  cfg.RateLimit.CodeRequestMaxAttempts,
	}
}

func (s CredentialSettings) withDefaults() CredentialSettings {
	if s.CodeLength <= 0 {
		s.CodeLength = 6
	}
	if s.CodeTTL <= 0 {
		s.CodeTTL = 10 * time.Minute
	}
	if s.Retention < s.CodeTTL {
		s.Retention = s.CodeTTL
	}
	if s.ClaimLease <= 0 {
		s.ClaimLease = 30 * time.Second
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 5
	}
	if s.MinPasswordLength <= 0 {
		s.MinPasswordLength = 6
	}
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = 2 * time.Second
	}
	if s.MailerTimeout <= 0 {
		s.MailerTimeout = 5 * time.Second
	}
	return s
}

// CredentialService coordinates verification codes and password changes for
// authenticated accounts.
type CredentialService struct {
	settings   CredentialSettings
	accounts   port.AccountRepository
	codes      port.VerificationCodeStore
	mailer     port.CodeMailer
	hasher     port.PasswordHasher
	rateLimits port.RateLimitStore
	validator  *security.PasswordValidator
	metrics    *telemetry.CredentialMetrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewCredentialService constructs a CredentialService. rateLimits and metrics may be nil.
func NewCredentialService(settings CredentialSettings, accounts port.AccountRepository, codes port.VerificationCodeStore, mailer port.CodeMailer, hasher port.PasswordHasher, rateLimits port.RateLimitStore, metrics *telemetry.CredentialMetrics, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings = settings.withDefaults()

	return &CredentialService{
		settings:   settings,
		accounts:   accounts,
		codes:      codes,
		mailer:     mailer,
		hasher:     hasher,
		rateLimits: rateLimits,
		validator:  security.DefaultPasswordValidator(settings.MinPasswordLength),
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestVerificationCode issues a fresh code for the account, replacing any
// previous one, and mails it to the account's address.
func (s *CredentialService) RequestVerificationCode(ctx context.Context, accountID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "CredentialService.RequestVerificationCode",
		trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() {
		s.metrics.CodeRequested(outcomeOf(err))
		endSpan(span, err)
	}()

	if accountID == "" {
		return domain.ErrInvalidToken
	}

	now := s.now().UTC()
	if err := s.checkRateLimit(ctx, codeRequestRateLimitScope, accountID, s.settings.CodeRequestLimit, now); err != nil {
		return err
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.HasEmail() {
		return domain.Wrap(domain.KindCodeDeliveryFailed, errors.New("account has no e-mail address"))
	}

	code, err := security.GenerateNumericCode(s.settings.CodeLength)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	record := domain.VerificationCode{
		AccountID: account.ID,
		CodeHash:  codeDigest(account.ID, code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.settings.CodeTTL),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	err = s.codes.Replace(storeCtx, record, s.settings.Retention)
	cancel()
	if err != nil {
		return unavailable("store verification code", err)
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.settings.MailerTimeout)
	err = s.mailer.SendVerificationCode(mailCtx, domain.VerificationCodeMessage{
		MessageID:   uuid.NewString(),
		AccountID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Code:        code,
		RequestedAt: now,
		ExpiresAt:   record.ExpiresAt,
	})
	cancel()
	if err != nil {
		return domain.Wrap(domain.KindCodeDeliveryFailed, fmt.Errorf("send verification code: %w", err))
	}

	logger.Annotate(s.logger, ctx).Info("verification code issued",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.Time("expires_at", record.ExpiresAt),
	)
	return nil
}

// ChangePassword replaces the account password after checking proof. An
// emailed code is consumed only when the new password has been stored.
func (s *CredentialService) ChangePassword(ctx context.Context, accountID string, proof domain.Proof, newPassword string) (err error) {
	method := "unknown"
	if proof != nil {
		method = proof.Method()
	}
	ctx, span := s.tracer.Start(ctx, "CredentialService.ChangePassword", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("proof.method", method),
	))
	defer func() {
		s.metrics.PasswordChanged(method, outcomeOf(err))
		endSpan(span, err)
	}()

	if err := s.validator.Validate(newPassword); err != nil {
		return domain.NewFieldError(domain.KindWeakPassword, "newPassword", err.Error())
	}
	if accountID == "" {
		return domain.ErrInvalidToken
	}

	switch p := proof.(type) {
	case domain.CurrentPassword:
		return s.changeWithCurrentPassword(ctx, accountID, p, newPassword)
	case domain.EmailedCode:
		return s.changeWithEmailedCode(ctx, accountID, p, newPassword)
	default:
		return domain.NewFieldError(domain.KindInvalidRequest, "method", "must be one of current_password, emailed_code")
	}
}

func (s *CredentialService) changeWithCurrentPassword(ctx context.Context, accountID string, proof domain.CurrentPassword, newPassword string) error {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(proof.Password, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return domain.ErrInvalidCredential
	}

	err = s.writePassword(ctx, account, newPassword)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		// The password changed between read and write.
		return domain.Wrap(domain.KindInvalidCredential, err)
	default:
		return err
	}

	logger.Annotate(s.logger, ctx).Info("password changed",
		zap.String("account_id", account.ID),
		zap.String("method", domain.MethodCurrentPassword),
	)
	return nil
}

func (s *CredentialService) changeWithEmailedCode(ctx context.Context, accountID string, proof domain.EmailedCode, newPassword string) error {
	claimID, err := s.claimCode(ctx, accountID, proof.Code)
	if err != nil {
		return err
	}

	account, err := s.loadAccount(ctx, accountID)
	if err == nil {
		err = s.writePassword(ctx, account, newPassword)
		if errors.Is(err, repository.ErrConflict) {
			err = unavailable("update password", err)
		}
	}
	if err != nil {
		s.releaseClaim(ctx, accountID, claimID)
		return err
	}

	s.commitClaim(ctx, accountID, claimID)

	logger.Annotate(s.logger, ctx).Info("password changed",
		zap.String("account_id", account.ID),
		zap.String("method", domain.MethodEmailedCode),
	)
	return nil
}

// claimCode validates the presented code against the stored slot and
// reserves it. It returns the claim id to commit or release.
func (s *CredentialService) claimCode(ctx context.Context, accountID, code string) (string, error) {
	now := s.now().UTC()

	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	record, err := s.codes.Get(storeCtx, accountID)
	cancel()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", domain.ErrNoCodeRequested
	case err != nil:
		return "", unavailable("load verification code", err)
	}

	if record.IsExpired(now) {
		return "", domain.ErrCodeExpired
	}
	if record.IsConsumed() || record.IsClaimed(now) || record.Attempts >= s.settings.MaxAttempts {
		return "", domain.ErrInvalidCode
	}

	// Every presentation is counted before comparing, so parallel guesses
	// cannot exceed MaxAttempts.
	if err := s.reserveAttempt(ctx, accountID); err != nil {
		return "", err
	}

	presented := codeDigest(accountID, code)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(record.CodeHash)) != 1 {
		return "", domain.ErrInvalidCode
	}

	claimID := uuid.NewString()
	storeCtx, cancel = context.WithTimeout(ctx, s.settings.StoreTimeout)
	err = s.codes.Claim(storeCtx, accountID, record.CodeHash, claimID, s.settings.ClaimLease)
	cancel()
	switch {
	case err == nil:
		return claimID, nil
	case errors.Is(err, repository.ErrConflict):
		// Replaced, consumed or claimed by a concurrent request.
		return "", domain.Wrap(domain.KindInvalidCode, err)
	case errors.Is(err, repository.ErrNotFound):
		return "", domain.ErrNoCodeRequested
	default:
		return "", unavailable("claim verification code", err)
	}
}

func (s *CredentialService) reserveAttempt(ctx context.Context, accountID string) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	_, err := s.codes.ReserveAttempt(storeCtx, accountID, s.settings.MaxAttempts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict):
		logger.Annotate(s.logger, ctx).Warn("verification code attempts exhausted", zap.String("account_id", accountID))
		return domain.Wrap(domain.KindInvalidCode, err)
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNoCodeRequested
	default:
		return unavailable("reserve verification attempt", err)
	}
}

// commitClaim and releaseClaim run detached from the caller's cancellation:
// the outcome of the password write is already decided.
func (s *CredentialService) commitClaim(ctx context.Context, accountID, claimID string) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.StoreTimeout)
	defer cancel()

	if err := s.codes.Commit(storeCtx, accountID, claimID); err != nil {
		logger.Annotate(s.logger, ctx).Error("commit verification code after password change",
			zap.String("account_id", accountID),
			zap.String("claim_id", claimID),
			zap.Error(err),
		)
	}
}

func (s *CredentialService) releaseClaim(ctx context.Context, accountID, claimID string) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.StoreTimeout)
	defer cancel()

	if err := s.codes.Release(storeCtx, accountID, claimID); err != nil {
		logger.Annotate(s.logger, ctx).Warn("release verification code claim",
			zap.String("account_id", accountID),
			zap.String("claim_id", claimID),
			zap.Error(err),
		)
	}
}

func (s *CredentialService) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	account, err := s.accounts.GetByID(storeCtx, accountID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// A verified token whose subject no longer exists.
		return nil, domain.Wrap(domain.KindInvalidToken, err)
	case err != nil:
		return nil, unavailable("load account", err)
	}
	return account, nil
}

// writePassword hashes and stores the new password. repository.ErrConflict is
// returned unwrapped so callers can decide how to report it.
func (s *CredentialService) writePassword(ctx context.Context, account *domain.Account, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	err = s.accounts.UpdatePassword(storeCtx, account.ID, account.PasswordHash, hash, s.hasher.Algorithm(), s.now().UTC())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return domain.Wrap(domain.KindInvalidToken, err)
	default:
		return unavailable("update password", err)
	}
}

func (s *CredentialService) checkRateLimit(ctx context.Context, scope, accountID string, limit int, now time.Time) error {
	if s.rateLimits == nil || limit <= 0 || s.settings.RateLimitWindow <= 0 {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.settings.StoreTimeout)
	defer cancel()

	decision, err := s.rateLimits.Hit(storeCtx, scope+":"+accountID, limit, s.settings.RateLimitWindow, now)
	if err != nil {
		logger.Annotate(s.logger, ctx).Warn("rate limit check failed, allowing request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return nil
	}
	if !decision.Allowed {
		return &RateLimitExceededError{Scope: scope, RetryAfter: decision.RetryAfter}
	}
	return nil
}

func codeDigest(accountID, code string) string {
	return security.HashToken(accountID + ":" + code)
}

func unavailable(op string, err error) error {
	return domain.Wrap(domain.KindServiceUnavailable, fmt.Errorf("%s: %w", op, err))
}

func outcomeOf(err error) string {
	if err == nil {
		return telemetry.OutcomeSuccess
	}
	return domain.KindOf(err).String()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err).String())
	}
	span.End()
}
