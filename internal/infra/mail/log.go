package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
)

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger      *zap.Logger
	revealCodes bool
}

// NewLogMailer constructs a mailer that logs. Codes are included in the
// entry only when revealCodes is set.
func NewLogMailer(logger *zap.Logger, revealCodes bool) *LogMailer {
	return &LogMailer{logger: logger, revealCodes: revealCodes}
}

// SendVerificationCode logs the message and always succeeds.
func (m *LogMailer) SendVerificationCode(ctx context.Context, msg domain.VerificationCodeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("account_id", msg.AccountID),
		zap.String("to", logger.MaskEmail(msg.Email)),
		zap.Time("expires_at", msg.ExpiresAt.UTC()),
	}
	if m.revealCodes {
		fields = append(fields, zap.String("code", msg.Code))
	}

	logger.Annotate(m.logger, ctx).Info("verification code e-mail (log driver)", fields...)
	return nil
}

var _ port.CodeMailer = (*LogMailer)(nil)
