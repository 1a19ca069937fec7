package domain

import (
	"errors"
	"fmt"
)

// Kind tags every client-facing failure. The set is closed; transports map
// each value to exactly one response shape.
type Kind uint8

const (
	KindInternal Kind = iota
	KindMissingToken
	KindInvalidToken
	KindExpiredToken
	KindWeakPassword
	KindInvalidCredential
	KindNoCodeRequested
	KindCodeExpired
	KindInvalidCode
	KindInvalidRequest
	KindRateLimited
	KindCodeDeliveryFailed
	KindServiceUnavailable
)

var kindNames = [...]string{
	KindInternal:           "InternalError",
	KindMissingToken:       "MissingToken",
	KindInvalidToken:       "InvalidToken",
	KindExpiredToken:       "ExpiredToken",
	KindWeakPassword:       "WeakPassword",
	KindInvalidCredential:  "InvalidCredential",
	KindNoCodeRequested:    "NoCodeRequested",
	KindCodeExpired:        "CodeExpired",
	KindInvalidCode:        "InvalidCode",
	KindInvalidRequest:     "InvalidRequest",
	KindRateLimited:        "RateLimited",
	KindCodeDeliveryFailed: "CodeDeliveryFailed",
	KindServiceUnavailable: "ServiceUnavailable",
}

// Kinds lists every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Retryable reports whether the failure comes from infrastructure and the
// caller may retry the same request.
func (k Kind) Retryable() bool {
	return k == KindCodeDeliveryFailed || k == KindServiceUnavailable
}

// FieldError points a validation failure at a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged error value carried through the service.
type Error struct {
	Kind   Kind
	Fields []FieldError
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying cause for logging.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = &Error{Kind: KindMissingToken}
	// ErrInvalidToken indicates the token failed structural or signature checks.
	ErrInvalidToken = &Error{Kind: KindInvalidToken}
	// ErrExpiredToken indicates a correctly signed token past its expiry.
	ErrExpiredToken = &Error{Kind: KindExpiredToken}
	// ErrWeakPassword indicates the new password violates the length policy.
	ErrWeakPassword = &Error{Kind: KindWeakPassword}
	// ErrInvalidCredential indicates the current password did not match.
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential}
	// ErrNoCodeRequested indicates no verification code exists for the account.
	ErrNoCodeRequested = &Error{Kind: KindNoCodeRequested}
	// ErrCodeExpired indicates the stored code passed its expiry window.
	ErrCodeExpired = &Error{Kind: KindCodeExpired}
	// ErrInvalidCode indicates a wrong, used, or superseded verification code.
	ErrInvalidCode = &Error{Kind: KindInvalidCode}
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	// ErrRateLimited indicates the caller exceeded its request window.
	ErrRateLimited = &Error{Kind: KindRateLimited}
	// ErrCodeDeliveryFailed indicates the mailer did not accept the code.
	ErrCodeDeliveryFailed = &Error{Kind: KindCodeDeliveryFailed}
	// ErrServiceUnavailable indicates a store or dependency failure; safe to retry.
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
)

// Wrap tags cause with kind while keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, cause error) error {
	return &Error{Kind: kind, cause: cause}
}

// NewFieldError builds a kind-tagged error pointing at one request field.
func NewFieldError(kind Kind, field, message string) error {
	return &Error{Kind: kind, Fields: []FieldError{{Field: field, Message: message}}}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// anything that was never tagged.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// FieldsOf returns field-level details attached to err, if any.
func FieldsOf(err error) []FieldError {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Fields
	}
	return nil
}
