package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// PolicyHandler exposes administrative security policy endpoints.
type PolicyHandler struct {
	policies *usecase.PolicyService
}

// NewPolicyHandler constructs PolicyHandler.
func NewPolicyHandler(policies *usecase.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// RegisterRoutes binds policy routes behind the supplied middleware chain
// (authentication plus role enforcement).
func (h *PolicyHandler) RegisterRoutes(r *gin.RouterGroup, adminMiddlewares ...gin.HandlerFunc) {
	group := r.Group("/policy", adminMiddlewares...)
	group.GET("", h.get)
	group.PUT("", h.update)
}

func (h *PolicyHandler) get(c *gin.Context) {
	policy, err := h.policies.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load policy"))
		return
	}

	c.JSON(http.StatusOK, newPolicyPayload(*policy))
}

func (h *PolicyHandler) update(c *gin.Context) {
	var req PolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy payload"))
		return
	}

	updated, err := h.policies.Update(c.Request.Context(), domain.SecurityPolicy{
		MinLength:                 req.MinLength,
		RequireUpperLower:         req.RequireUpperLower,
		RequireDigit:              req.RequireDigit,
		RequireSpecial:            req.RequireSpecial,
		ForbidPersonalData:        req.ForbidPersonalData,
		MinStrengthScore:          req.MinStrengthScore,
		Require2FA:                req.Require2FA,
		PreventReuse:              req.PreventReuse,
		HistoryLimit:              req.HistoryLimit,
		MaxFailedAttempts:         req.MaxFailedAttempts,
		LockoutDuration:           time.Duration(req.LockoutSeconds) * time.Second,
		RequiredSecurityQuestions: req.RequiredSecurityQuestions,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidPolicy, Status: http.StatusBadRequest, Message: "invalid policy values"},
		}, http.StatusInternalServerError, "failed to update policy")
		return
	}

	c.JSON(http.StatusOK, newPolicyPayload(*updated))
}

func newPolicyPayload(policy domain.SecurityPolicy) PolicyPayload {
	return PolicyPayload{
		MinLength:                 policy.MinLength,
		RequireUpperLower:         policy.RequireUpperLower,
		RequireDigit:              policy.RequireDigit,
		RequireSpecial:            policy.RequireSpecial,
		ForbidPersonalData:        policy.ForbidPersonalData,
		MinStrengthScore:          policy.MinStrengthScore,
		Require2FA:                policy.Require2FA,
		PreventReuse:              policy.PreventReuse,
		HistoryLimit:              policy.HistoryLimit,
		MaxFailedAttempts:         policy.MaxFailedAttempts,
		LockoutSeconds:            int(policy.LockoutDuration / time.Second),
		RequiredSecurityQuestions: policy.RequiredSecurityQuestions,
		UpdatedAt:                 policy.UpdatedAt,
	}
}
