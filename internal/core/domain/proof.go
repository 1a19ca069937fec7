package domain

import "strings"

// Verification method identifiers accepted on the wire.
const (
	MethodCurrentPassword = "current_password"
	MethodEmailedCode     = "emailed_code"
)

// Proof is the evidence presented with a credential change. The set of
// implementations is closed: CurrentPassword and EmailedCode.
type Proof interface {
	Method() string
	proof()
}

// CurrentPassword proves control of the account with its present password.
type CurrentPassword struct {
	Password string
}

// Method implements Proof.
func (CurrentPassword) Method() string { return MethodCurrentPassword }

func (CurrentPassword) proof() {}

// EmailedCode proves control of the account's mailbox with an issued code.
type EmailedCode struct {
	Code string
}

// Method implements Proof.
func (EmailedCode) Method() string { return MethodEmailedCode }

func (EmailedCode) proof() {}

// ParseProof builds the proof matching the wire method name.
func ParseProof(method, value string) (Proof, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case MethodCurrentPassword:
		return CurrentPassword{Password: value}, nil
	case MethodEmailedCode:
		return EmailedCode{Code: strings.TrimSpace(value)}, nil
	default:
		return nil, NewFieldError(KindInvalidRequest, "method", "must be one of current_password, emailed_code")
	}
}
