package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/transport/http/middleware"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// PasswordHandler exposes the authenticated password change endpoint.
type PasswordHandler struct {
	passwords *usecase.PasswordService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

// RegisterRoutes binds password routes. authMiddleware must resolve the
// caller's identity before the handler runs.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	r.POST("/change", authMiddleware, h.change)
}

func (h *PasswordHandler) change(c *gin.Context) {
	username, ok := middleware.AuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	result, err := h.passwords.ChangePassword(c.Request.Context(), username, req.CurrentPassword, req.NewPassword)
	if err != nil {
		// The rule detail stays server side; clients get a stable message.
		if errors.Is(err, usecase.ErrPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password does not meet requirements"))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusUnauthorized, Message: "current password invalid"},
			{Err: usecase.ErrReusedPassword, Status: http.StatusConflict, Message: "password was used recently"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:   "password changed",
		ChangedAt: result.ChangedAt,
	})
}
