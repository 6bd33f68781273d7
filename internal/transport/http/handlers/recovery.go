package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-account-security/internal/transport/http/middleware"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// RecoveryHandler exposes security-question recovery endpoints.
type RecoveryHandler struct {
	recovery *usecase.RecoveryService
}

// NewRecoveryHandler constructs RecoveryHandler.
func NewRecoveryHandler(recovery *usecase.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// RegisterRoutes binds recovery routes. Question listing and recovery are
// anonymous; answer registration requires the caller's identity.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc, recoverMiddlewares ...gin.HandlerFunc) {
	r.GET("/questions", h.questions)

	if len(recoverMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, recoverMiddlewares...)
		chain = append(chain, h.recover)
		r.POST("/recover", chain...)
	} else {
		r.POST("/recover", h.recover)
	}

	r.PUT("/answers", authMiddleware, h.registerAnswers)
}

func (h *RecoveryHandler) questions(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	questions, err := h.recovery.SecurityQuestions(c.Request.Context(), username)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRecoveryUnavailable, Status: http.StatusNotFound, Message: "recovery unavailable for this account"},
		}, http.StatusInternalServerError, "failed to load security questions")
		return
	}

	c.JSON(http.StatusOK, SecurityQuestionsResponse{
		Username:  username,
		Questions: questions,
	})
}

func (h *RecoveryHandler) recover(c *gin.Context) {
	var req RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid recovery payload"))
		return
	}

	answers := make([]usecase.SecurityAnswerInput, 0, len(req.Answers))
	for _, answer := range req.Answers {
		answers = append(answers, usecase.SecurityAnswerInput{
			Question: answer.Question,
			Answer:   answer.Answer,
		})
	}

	result, err := h.recovery.RecoverPassword(c.Request.Context(), strings.TrimSpace(req.Username), answers)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAnswersIncorrect, Status: http.StatusUnauthorized, Message: "security answers incorrect"},
			{Err: usecase.ErrRecoveryUnavailable, Status: http.StatusNotFound, Message: "recovery unavailable for this account"},
		}, http.StatusInternalServerError, "failed to recover password")
		return
	}

	c.JSON(http.StatusOK, RecoverResponse{
		TempPassword:       result.TempPassword,
		MustChangePassword: true,
		ChangedAt:          result.ChangedAt,
	})
}

func (h *RecoveryHandler) registerAnswers(c *gin.Context) {
	username, ok := middleware.AuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req RegisterAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid answers payload"))
		return
	}

	answers := make([]usecase.SecurityAnswerInput, 0, len(req.Answers))
	for _, answer := range req.Answers {
		answers = append(answers, usecase.SecurityAnswerInput{
			Question: answer.Question,
			Answer:   answer.Answer,
		})
	}

	if err := h.recovery.RegisterSecurityAnswers(c.Request.Context(), username, answers); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotEnoughAnswers, Status: http.StatusBadRequest, Message: "not enough security answers"},
		}, http.StatusInternalServerError, "failed to register security answers")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "security answers registered"})
}
