package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	tokenTTL time.Duration
}

// NewAuthHandler constructs AuthHandler. tokenTTL is echoed to clients as
// expires_in on successful logins.
func NewAuthHandler(auth *usecase.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, tokenTTL: tokenTTL}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/2fa/verify", h.verify2FA)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) verify2FA(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	result, err := h.auth.Validate2FA(c.Request.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.Code))
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.loginResponse(result))
}

func (h *AuthHandler) loginResponse(result *usecase.LoginResult) LoginResponse {
	resp := LoginResponse{
		Status:             string(result.Status),
		MustChangePassword: result.MustChangePassword,
	}

	switch result.Status {
	case usecase.LoginSucceeded:
		resp.AccessToken = result.Token
		resp.TokenType = "Bearer"
		resp.ExpiresIn = int(h.tokenTTL / time.Second)
	case usecase.LoginRequires2FA:
		if !result.ChallengeExpiresAt.IsZero() {
			expires := result.ChallengeExpiresAt
			resp.ChallengeExpiresAt = &expires
		}
	}

	return resp
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	var lockedErr *usecase.AccountLockedError
	if errors.As(err, &lockedErr) {
		seconds := int(math.Ceil(lockedErr.Remaining.Seconds()))
		if seconds < 0 {
			seconds = 0
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusLocked, NewErrorResponse(c, "account temporarily locked"))
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		{Err: usecase.ErrAccountExpired, Status: http.StatusForbidden, Message: "account expired"},
		{Err: usecase.ErrInvalidChallenge, Status: http.StatusUnauthorized, Message: "invalid or expired code"},
	}, http.StatusInternalServerError, "authentication failed")
}
