package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/response"
)

// RequireAuth validates the bearer token and exposes its subject to
// downstream handlers. A missing token yields MissingToken (401); a token
// that fails verification yields InvalidToken or ExpiredToken (403).
func RequireAuth(verifier port.TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, log, domain.ErrMissingToken)
			return
		}

		subjectID, err := verifier.Verify(token)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		c.Set(UserIDKey, subjectID)
		c.Request = c.Request.WithContext(WithSubject(c.Request.Context(), subjectID))

		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
// Anything other than a non-empty Bearer credential counts as absent.
func BearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(value)
	if token == "" {
		return "", false
	}
	return token, true
}
