package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/transport/http/middleware"
	"github.com/yavuz-tech/helvino/internal/usecase"
)

// SessionHandler exposes endpoints for inspecting and terminating the
// authenticated account's sessions. Every route requires a session token.
type SessionHandler struct {
	registry *usecase.SessionRegistry
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(registry *usecase.SessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// RegisterRoutes binds REST session management routes to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.DELETE("", h.RevokeAllSessions)
	r.POST("/current/touch", h.TouchSession)
	r.GET("/current/elevation", h.ElevationStatus)
	r.DELETE("/:session_id", h.RevokeSession)
}

// ListSessions godoc
// @Summary List active sessions
// @Description Returns the authenticated account's active sessions, most recently seen first.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.registry.ListActiveSessions(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	payload := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: payload,
		Total:    len(payload),
	})
}

// RevokeSession godoc
// @Summary Revoke one session
// @Description Terminates the given session if it belongs to the authenticated account.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionPayload
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id} [delete]
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := c.Param("session_id")

	target, err := h.registry.GetSession(c.Request.Context(), sessionID)
	if err != nil || target.AccountID != accountID {
		// Foreign sessions are indistinguishable from missing ones.
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	session, err := h.registry.Revoke(c.Request.Context(), sessionID, domain.RevokeReasonLogout)
	if err != nil {
		cases := []ErrorCase{{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"}}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// RevokeAllSessions godoc
// @Summary Revoke all sessions
// @Description Terminates every active session owned by the authenticated account. Pass reason=security_lock for the lock-account action offered by location-change alerts.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param reason query string false "Revocation reason (user_logout or security_lock)"
// @Success 200 {object} RevokeAllResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [delete]
func (h *SessionHandler) RevokeAllSessions(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	reason := domain.RevokeReasonLogout
	if c.Query("reason") == domain.RevokeReasonSecurityLock {
		reason = domain.RevokeReasonSecurityLock
	}

	count, err := h.registry.RevokeAllForAccount(c.Request.Context(), accountID, reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, RevokeAllResponse{RevokedCount: count})
}

// TouchSession godoc
// @Summary Record session activity
// @Description Refreshes the authenticated session's last-seen timestamp.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/current/touch [post]
func (h *SessionHandler) TouchSession(c *gin.Context) {
	sessionID, ok := middleware.GetAuthenticatedSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.registry.Touch(c.Request.Context(), sessionID, c.ClientIP()); err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
			{Err: usecase.ErrSessionRevoked, Status: http.StatusUnauthorized, Message: "session revoked"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to touch session")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session touched"})
}

// ElevationStatus godoc
// @Summary Check elevated trust
// @Description Reports whether the authenticated session currently holds elevated trust. Callers gate sensitive operations on this endpoint; a 403 carries the STEP_UP_REQUIRED code.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} ElevationStatusResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/current/elevation [get]
func (h *SessionHandler) ElevationStatus(c *gin.Context) {
	sessionID, ok := middleware.GetAuthenticatedSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.registry.RequireElevated(c.Request.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, usecase.ErrStepUpRequired):
			c.JSON(http.StatusForbidden, NewStepUpRequiredResponse(c))
		case errors.Is(err, usecase.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		case errors.Is(err, usecase.ErrSessionRevoked):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session revoked"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check elevation"))
		}
		return
	}

	session, err := h.registry.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check elevation"))
		return
	}

	c.JSON(http.StatusOK, ElevationStatusResponse{
		Elevated:      true,
		ElevatedUntil: session.ElevatedUntil,
	})
}
