package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/infra/security"
)

// OrgTokenHandler issues and verifies the signed org credentials embedded in
// widget installs. Verification failures are reported with a single generic
// message regardless of cause so the endpoint cannot be used as a signature
// oracle; the detailed reason goes to the log only.
type OrgTokenHandler struct {
	codec      *security.OrgTokenCodec
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewOrgTokenHandler constructs an org token handler.
func NewOrgTokenHandler(codec *security.OrgTokenCodec, defaultTTL time.Duration, logger *zap.Logger) *OrgTokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgTokenHandler{codec: codec, defaultTTL: defaultTTL, logger: logger}
}

// RegisterRoutes binds org token routes to the provided router group.
func (h *OrgTokenHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("", h.Issue)
	r.POST("/verify", h.Verify)
}

// Issue godoc
// @Summary Issue an org token
// @Description Signs a credential binding an organization to its key.
// @Tags OrgTokens
// @Accept json
// @Produce json
// @Param request body IssueOrgTokenRequest true "Org token request"
// @Success 201 {object} OrgTokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/org-tokens [post]
func (h *OrgTokenHandler) Issue(c *gin.Context) {
	if h.codec == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "org token service unavailable"))
		return
	}

	var req IssueOrgTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "org_id and org_key are required"))
		return
	}

	ttl := h.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, err := h.codec.Encode(req.OrgID, req.OrgKey, ttl)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "failed to issue org token"))
		return
	}

	payload, err := h.codec.Decode(token)
	if err != nil {
		h.logger.Error("issued org token failed self-verification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue org token"))
		return
	}

	c.JSON(http.StatusCreated, OrgTokenResponse{
		Token:     token,
		IssuedAt:  payload.IssuedAt,
		ExpiresAt: payload.ExpiresAt,
	})
}

// Verify godoc
// @Summary Verify an org token
// @Description Checks signature and expiry and returns the embedded org binding.
// @Tags OrgTokens
// @Accept json
// @Produce json
// @Param request body VerifyOrgTokenRequest true "Verification request"
// @Success 200 {object} OrgTokenPayloadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/org-tokens/verify [post]
func (h *OrgTokenHandler) Verify(c *gin.Context) {
	if h.codec == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "org token service unavailable"))
		return
	}

	var req VerifyOrgTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	payload, err := h.codec.Decode(req.Token)
	if err != nil {
		h.logger.Info("org token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credential"))
		return
	}

	c.JSON(http.StatusOK, OrgTokenPayloadResponse{
		OrgID:     payload.OrgID,
		OrgKey:    payload.OrgKey,
		IssuedAt:  payload.IssuedAt,
		ExpiresAt: payload.ExpiresAt,
	})
}
