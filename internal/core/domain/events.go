package domain

import "time"

// VerificationCodeMessage is the payload handed to a mailer. It carries the
// plaintext code and must never be logged unmasked.
type VerificationCodeMessage struct {
	MessageID   string
	AccountID   string
	Email       string
	DisplayName string
	Code        string
	RequestedAt time.Time
	ExpiresAt   time.Time
}
