// Package response renders every HTTP reply of the identity API in one
// envelope and turns tagged domain errors into status codes.
package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
	"github.com/NT912/Finwise---final-sub002/internal/usecase"
)

// ErrorBody is the failure envelope returned for every rejected request.
type ErrorBody struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// Status maps a kind to its HTTP status code.
func Status(kind domain.Kind) int {
	switch kind {
	case domain.KindMissingToken:
		return http.StatusUnauthorized
	case domain.KindInvalidToken, domain.KindExpiredToken:
		return http.StatusForbidden
	case domain.KindWeakPassword,
		domain.KindInvalidCredential,
		domain.KindNoCodeRequested,
		domain.KindCodeExpired,
		domain.KindInvalidCode,
		domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindCodeDeliveryFailed, domain.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for a kind.
func Message(kind domain.Kind) string {
	switch kind {
	case domain.KindMissingToken:
		return "authentication token is required"
	case domain.KindInvalidToken:
		return "authentication token is invalid"
	case domain.KindExpiredToken:
		return "authentication token has expired"
	case domain.KindWeakPassword:
		return "new password must be at least 6 characters"
	case domain.KindInvalidCredential:
		return "current password is incorrect"
	case domain.KindNoCodeRequested:
		return "no verification code has been requested"
	case domain.KindCodeExpired:
		return "verification code has expired"
	case domain.KindInvalidCode:
		return "verification code is invalid"
	case domain.KindInvalidRequest:
		return "request payload is invalid"
	case domain.KindRateLimited:
		return "too many requests, try again later"
	case domain.KindCodeDeliveryFailed:
		return "verification code could not be delivered"
	case domain.KindServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

// Normalize converts err into a status and envelope. Anything that was never
// tagged with a kind becomes InternalError and its text is not exposed.
func Normalize(err error) (int, ErrorBody) {
	kind := domain.KindOf(err)
	body := ErrorBody{
		Success: false,
		Code:    kind.String(),
		Message: Message(kind),
	}
	if kind != domain.KindInternal {
		body.Errors = domain.FieldsOf(err)
	}
	return Status(kind), body
}

// Error writes the envelope for err and aborts the handler chain.
func Error(c *gin.Context, log *zap.Logger, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	status, body := Normalize(err)
	log = logger.Annotate(log, c.Request.Context()).With(
		zap.String("code", body.Code),
		zap.String("path", c.Request.URL.Path),
	)

	switch kind := domain.KindOf(err); {
	case kind == domain.KindInternal:
		log.Error("unhandled error", zap.Error(err))
		_ = c.Error(err)
	case kind.Retryable():
		log.Warn("dependency failure", zap.Error(err))
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
	}

	c.AbortWithStatusJSON(status, body)
}

// OK writes a success envelope, merging extra fields into it.
func OK(c *gin.Context, extra gin.H) {
	body := gin.H{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
