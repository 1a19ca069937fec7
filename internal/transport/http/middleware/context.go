package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey is the gin context key for the authenticated subject id.
	UserIDKey = "user_id"
	// RequestIDKey is the gin context key for the correlation id.
	RequestIDKey = "request_id"
)

type subjectKey struct{}

// WithSubject stores the authenticated subject id on ctx.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subjectID)
}

// SubjectFromContext returns the subject id placed on ctx by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey{}).(string)
	return id, ok && id != ""
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}
