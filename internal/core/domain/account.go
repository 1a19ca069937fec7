package domain

import "time"

// Account is the credential-bearing view of a FinWise user.
type Account struct {
	ID                 string
	Email              string
	DisplayName        string
	PasswordHash       string
	PasswordAlgo       string
	CreatedAt          time.Time
	LastPasswordChange *time.Time
}

// HasEmail reports whether the account can receive out-of-band codes.
func (a Account) HasEmail() bool {
	return a.Email != ""
}
