package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login. When
// the account requires a second factor no token is present and Status reads
// "requires_2fa".
type LoginResponse struct {
	Status             string     `json:"status"`
	AccessToken        string     `json:"access_token,omitempty"`
	TokenType          string     `json:"token_type,omitempty"`
	ExpiresIn          int        `json:"expires_in,omitempty"`
	MustChangePassword bool       `json:"must_change_password,omitempty"`
	ChallengeExpiresAt *time.Time `json:"challenge_expires_at,omitempty"`
}

// TwoFactorVerifyRequest holds the second-factor verification payload.
type TwoFactorVerifyRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// PasswordChangeRequest defines the authenticated password change payload.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordChangeResponse confirms a completed password change.
type PasswordChangeResponse struct {
	Message   string    `json:"message"`
	ChangedAt time.Time `json:"changed_at"`
}

// SecurityQuestionsResponse lists the questions registered for an account.
type SecurityQuestionsResponse struct {
	Username  string   `json:"username"`
	Questions []string `json:"questions"`
}

// SecurityAnswerPayload pairs a question with its answer.
type SecurityAnswerPayload struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// RecoverRequest submits recovery answers for verification.
type RecoverRequest struct {
	Username string                  `json:"username" binding:"required"`
	Answers  []SecurityAnswerPayload `json:"answers" binding:"required"`
}

// RecoverResponse returns the one-time temporary password.
type RecoverResponse struct {
	TempPassword       string    `json:"temp_password"`
	MustChangePassword bool      `json:"must_change_password"`
	ChangedAt          time.Time `json:"changed_at"`
}

// RegisterAnswersRequest replaces the caller's security answer set.
type RegisterAnswersRequest struct {
	Answers []SecurityAnswerPayload `json:"answers" binding:"required"`
}

// PolicyPayload is the wire representation of the security policy.
type PolicyPayload struct {
	MinLength                 int       `json:"min_length"`
	RequireUpperLower         bool      `json:"require_upper_lower"`
	RequireDigit              bool      `json:"require_digit"`
	RequireSpecial            bool      `json:"require_special"`
	ForbidPersonalData        bool      `json:"forbid_personal_data"`
	MinStrengthScore          int       `json:"min_strength_score"`
	Require2FA                bool      `json:"require_2fa"`
	PreventReuse              bool      `json:"prevent_reuse"`
	HistoryLimit              int       `json:"history_limit"`
	MaxFailedAttempts         int       `json:"max_failed_attempts"`
	LockoutSeconds            int       `json:"lockout_seconds"`
	RequiredSecurityQuestions int       `json:"required_security_questions"`
	UpdatedAt                 time.Time `json:"updated_at,omitempty"`
}

// ProvisionAccountRequest creates an account from one of the intake variants.
type ProvisionAccountRequest struct {
	Variant   string     `json:"variant" binding:"required,oneof=legacy standard"`
	Username  string     `json:"username" binding:"required"`
	Password  string     `json:"password" binding:"required"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ProvisionAccountResponse summarizes the created account.
type ProvisionAccountResponse struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Role               string     `json:"role"`
	MustChangePassword bool       `json:"must_change_password"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
