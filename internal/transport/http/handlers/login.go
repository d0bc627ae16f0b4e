package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/infra/security"
	"github.com/yavuz-tech/helvino/internal/usecase"
)

// LoginHandler admits authenticated devices into the session registry and
// hands back the bearer token session-scoped endpoints require.
type LoginHandler struct {
	registry *usecase.SessionRegistry
	issuer   *security.SessionTokenIssuer
	logger   *zap.Logger
}

// NewLoginHandler constructs a login handler.
func NewLoginHandler(registry *usecase.SessionRegistry, issuer *security.SessionTokenIssuer, logger *zap.Logger) *LoginHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginHandler{registry: registry, issuer: issuer, logger: logger}
}

// RegisterRoutes binds login routes to the provided router group.
func (h *LoginHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	handlersChain := append([]gin.HandlerFunc{}, middlewares...)
	handlersChain = append(handlersChain, h.Login)
	r.POST("", handlersChain...)
}

// Login godoc
// @Summary Register an authenticated login
// @Description Admits a session under the per-account cap, classifies the login against device history, and issues a session token.
// @Tags Logins
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login registration request"
// @Success 201 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/logins [post]
func (h *LoginHandler) Login(c *gin.Context) {
	if h.registry == nil || h.issuer == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "login service unavailable"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account_id and device_fingerprint are required"))
		return
	}

	session, anomaly, err := h.registry.CreateSession(c.Request.Context(), usecase.CreateSessionInput{
		AccountID:         req.AccountID,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceName:        req.DeviceName,
		IP:                c.ClientIP(),
		Country:           req.Country,
	})
	if err != nil {
		h.logger.Error("login registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to register login"))
		return
	}

	token, err := h.issuer.Issue(session.ID, session.AccountID)
	if err != nil {
		h.logger.Error("session token issuance failed", zap.String("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue session token"))
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{
		Session:        newSessionPayload(*session),
		Token:          token,
		Anomaly:        string(anomaly),
		StepUpRequired: anomaly.RequiresStepUp(),
	})
}
