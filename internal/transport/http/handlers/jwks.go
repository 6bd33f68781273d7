package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler provides the JSON Web Key Set used for offline token validation.
type JWKSHandler struct {
	issuer *security.TokenIssuer
}

// NewJWKSHandler constructs a JWKS handler backed by the supplied issuer.
func NewJWKSHandler(issuer *security.TokenIssuer) *JWKSHandler {
	return &JWKSHandler{issuer: issuer}
}

// Keys serves the public keys used to verify issued token signatures.
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.issuer == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "jwks not available"))
		return
	}

	payload, err := h.issuer.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
