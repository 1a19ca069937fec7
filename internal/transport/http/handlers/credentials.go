package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/middleware"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/response"
)

// CredentialService is the subset of the credential coordinator used over HTTP.
type CredentialService interface {
	RequestVerificationCode(ctx context.Context, accountID string) error
	ChangePassword(ctx context.Context, accountID string, proof domain.Proof, newPassword string) error
}

// CredentialHandler exposes verification-code and password endpoints for the
// authenticated account.
type CredentialHandler struct {
	service CredentialService
	logger  *zap.Logger
}

func NewCredentialHandler(service CredentialService, logger *zap.Logger) *CredentialHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialHandler{service: service, logger: logger}
}

// RequestVerificationCode issues and mails a fresh code, replacing any earlier one.
func (h *CredentialHandler) RequestVerificationCode(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		response.Error(c, h.logger, domain.ErrMissingToken)
		return
	}

	if err := h.service.RequestVerificationCode(c.Request.Context(), accountID); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	response.OK(c, nil)
}

// ChangePassword replaces the password of the authenticated account.
func (h *CredentialHandler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		response.Error(c, h.logger, domain.ErrMissingToken)
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.logger, domain.Wrap(domain.KindInvalidRequest, err))
		return
	}

	proof, err := domain.ParseProof(req.Method, req.Proof)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), accountID, proof, req.NewPassword); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	response.OK(c, nil)
}

// Me returns the subject of the presented token.
func (h *CredentialHandler) Me(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		response.Error(c, h.logger, domain.ErrMissingToken)
		return
	}

	response.OK(c, gin.H{"subjectId": accountID})
}
