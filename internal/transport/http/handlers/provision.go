package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// ProvisionHandler exposes administrative account creation.
type ProvisionHandler struct {
	provision *usecase.ProvisionService
}

// NewProvisionHandler constructs ProvisionHandler.
func NewProvisionHandler(provision *usecase.ProvisionService) *ProvisionHandler {
	return &ProvisionHandler{provision: provision}
}

// RegisterRoutes binds provisioning routes behind the supplied middleware chain.
func (h *ProvisionHandler) RegisterRoutes(r *gin.RouterGroup, adminMiddlewares ...gin.HandlerFunc) {
	group := r.Group("/accounts", adminMiddlewares...)
	group.POST("", h.create)
}

func (h *ProvisionHandler) create(c *gin.Context) {
	var req ProvisionAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid provisioning payload"))
		return
	}

	var provisionReq usecase.ProvisionRequest
	switch strings.ToLower(req.Variant) {
	case "legacy":
		provisionReq = usecase.ProvisionLegacy(req.Username, req.Password, req.FirstName, req.LastName)
	case "standard":
		role := domain.AccountRole(strings.ToLower(strings.TrimSpace(req.Role)))
		provisionReq = usecase.ProvisionStandard(req.Username, req.Password, req.FirstName, req.LastName, req.BirthDate, role, req.ExpiresAt)
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown provisioning variant"))
		return
	}

	account, err := h.provision.Provision(c.Request.Context(), provisionReq)
	if err != nil {
		if errors.Is(err, usecase.ErrPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password does not meet requirements"))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
		}, http.StatusInternalServerError, "failed to provision account")
		return
	}

	c.JSON(http.StatusCreated, ProvisionAccountResponse{
		ID:                 account.ID,
		Username:           account.Username,
		Role:               string(account.Role),
		MustChangePassword: account.MustChangePassword,
		ExpiresAt:          account.ExpiresAt,
		CreatedAt:          account.CreatedAt,
	})
}
