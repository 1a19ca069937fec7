package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
	Algorithm() string
}

// TokenVerifier resolves a bearer token to the subject it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// TokenIssuer signs tokens for a subject.
type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}
