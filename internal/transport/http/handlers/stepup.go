package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/transport/http/middleware"
	"github.com/yavuz-tech/helvino/internal/usecase"
)

// StepUpHandler exposes challenge issuance and verification. The plaintext
// verification code never appears in a response outside development mode.
type StepUpHandler struct {
	manager  *usecase.StepUpManager
	registry *usecase.SessionRegistry
	logger   *zap.Logger
	isDev    bool
}

// NewStepUpHandler constructs a step-up handler.
func NewStepUpHandler(manager *usecase.StepUpManager, registry *usecase.SessionRegistry, logger *zap.Logger, isDev bool) *StepUpHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StepUpHandler{manager: manager, registry: registry, logger: logger, isDev: isDev}
}

// RegisterRoutes binds step-up routes to the provided router group. Issue
// requires an authenticated session; verify additionally accepts the optional
// rate-limit middlewares.
func (h *StepUpHandler) RegisterRoutes(r *gin.RouterGroup, verifyMiddlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.POST("/:scope/challenges", h.IssueChallenge)

	verifyChain := append([]gin.HandlerFunc{}, verifyMiddlewares...)
	verifyChain = append(verifyChain, h.VerifyChallenge)
	r.POST("/:scope/challenges/:challenge_id/verify", verifyChain...)
}

// IssueChallenge godoc
// @Summary Issue a step-up challenge
// @Description Creates a pending challenge bound to the authenticated session.
// @Tags StepUp
// @Security Bearer
// @Produce json
// @Param scope path string true "Challenge scope (admin or portal)"
// @Success 201 {object} StepUpChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/step-up/{scope}/challenges [post]
func (h *StepUpHandler) IssueChallenge(c *gin.Context) {
	sessionID, ok := middleware.GetAuthenticatedSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	scope := domain.ChallengeScope(strings.ToLower(c.Param("scope")))

	challenge, code, err := h.manager.Issue(c.Request.Context(), sessionID, scope)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrInvalidChallengeScope, Status: http.StatusBadRequest, Message: "unknown challenge scope"},
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to issue challenge")
		return
	}

	resp := StepUpChallengeResponse{
		ChallengeID: challenge.ID,
		Scope:       string(challenge.Scope),
		ExpiresAt:   challenge.ExpiresAt,
	}

	// SECURITY: the raw code is only exposed in development mode; production
	// deliveries go out through the notification channel.
	if h.isDev && code != "" {
		resp.DevCode = &code
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyChallenge godoc
// @Summary Verify a step-up challenge
// @Description Submits the verification code; success elevates the bound session.
// @Tags StepUp
// @Security Bearer
// @Accept json
// @Produce json
// @Param scope path string true "Challenge scope (admin or portal)"
// @Param challenge_id path string true "Challenge identifier"
// @Param request body VerifyChallengeRequest true "Verification request"
// @Success 200 {object} VerifyChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/step-up/{scope}/challenges/{challenge_id}/verify [post]
func (h *StepUpHandler) VerifyChallenge(c *gin.Context) {
	var req VerifyChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code is required"))
		return
	}

	challengeID := c.Param("challenge_id")

	challenge, err := h.manager.Verify(c.Request.Context(), challengeID, req.Code)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrChallengeNotFound, Status: http.StatusNotFound, Message: "challenge not found"},
			{Err: usecase.ErrChallengeNotPending, Status: http.StatusConflict, Message: "challenge already resolved"},
			{Err: usecase.ErrChallengeExpired, Status: http.StatusGone, Message: "challenge expired"},
			{Err: usecase.ErrChallengeAttemptsExceeded, Status: http.StatusTooManyRequests, Message: "challenge attempts exceeded"},
			{Err: usecase.ErrInvalidChallengeCode, Status: http.StatusBadRequest, Message: "invalid code"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to verify challenge")
		return
	}

	resp := VerifyChallengeResponse{
		Status:    string(challenge.Status),
		SessionID: challenge.SessionID,
	}

	if session, err := h.registry.GetSession(c.Request.Context(), challenge.SessionID); err == nil {
		resp.ElevatedUntil = session.ElevatedUntil
	} else {
		h.logger.Warn("elevated session lookup failed", zap.String("session_id", challenge.SessionID), zap.Error(err))
	}

	c.JSON(http.StatusOK, resp)
}
