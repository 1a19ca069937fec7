package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
)

// MinSecretLength is the shortest accepted HMAC signing secret.
const MinSecretLength = 32

const defaultTokenTTL = time.Hour

// ErrSecretTooShort indicates the configured signing secret is below MinSecretLength.
var ErrSecretTooShort = fmt.Errorf("token codec: secret must be at least %d bytes", MinSecretLength)

// TokenCodecConfig configures a TokenCodec.
type TokenCodecConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// TokenCodec issues and verifies HS256 bearer tokens carrying an account id as subject.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec validates cfg and returns a codec.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenCodec{
		secret: secret,
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// EphemeralSecret returns a random secret for processes that run without a configured one.
func EphemeralSecret() ([]byte, error) {
	secret := make([]byte, MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("token codec: generate secret: %w", err)
	}
	return secret, nil
}

// WithClock overrides the internal clock, used in tests.
func (c *TokenCodec) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// TTL reports the lifetime given to issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subjectID.
func (c *TokenCodec) Issue(subjectID string) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", errors.New("token codec: subject is required")
	}

	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token codec: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, encoding and expiry and returns the subject.
// Expired tokens yield domain.ErrExpiredToken; every other failure yields
// domain.ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.Wrap(domain.KindExpiredToken, err)
		}
		return "", domain.Wrap(domain.KindInvalidToken, err)
	}
	if !parsed.Valid {
		return "", domain.ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", domain.Wrap(domain.KindInvalidToken, errors.New("token has no subject"))
	}
	return subject, nil
}

var (
	_ port.TokenVerifier = (*TokenCodec)(nil)
	_ port.TokenIssuer   = (*TokenCodec)(nil)
)
