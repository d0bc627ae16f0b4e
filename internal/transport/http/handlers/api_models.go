package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yavuz-tech/helvino/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// NewStepUpRequiredResponse creates the sentinel error payload that instructs
// clients to start a step-up challenge before retrying.
func NewStepUpRequiredResponse(c *gin.Context) ErrorResponse {
	resp := NewErrorResponse(c, "step-up verification required")
	resp.Code = domain.StepUpRequiredCode
	return resp
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// IssueOrgTokenRequest asks for a signed credential binding an org to its key.
type IssueOrgTokenRequest struct {
	OrgID      string `json:"org_id" binding:"required"`
	OrgKey     string `json:"org_key" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// OrgTokenResponse carries the issued credential.
type OrgTokenResponse struct {
	Token     string     `json:"token"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VerifyOrgTokenRequest carries a credential for verification.
type VerifyOrgTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// OrgTokenPayloadResponse echoes the verified org binding.
type OrgTokenPayloadResponse struct {
	OrgID     string     `json:"org_id"`
	OrgKey    string     `json:"org_key"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LoginRequest registers a new authenticated device with the session registry.
type LoginRequest struct {
	AccountID         string  `json:"account_id" binding:"required"`
	DeviceFingerprint string  `json:"device_fingerprint" binding:"required"`
	DeviceName        *string `json:"device_name"`
	Country           string  `json:"country"`
}

// SessionPayload is the wire representation of a tracked session.
type SessionPayload struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"account_id"`
	DeviceFingerprint string     `json:"device_fingerprint"`
	DeviceName        *string    `json:"device_name,omitempty"`
	Country           string     `json:"country,omitempty"`
	TrustLevel        string     `json:"trust_level"`
	ElevatedUntil     *time.Time `json:"elevated_until,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastSeen          time.Time  `json:"last_seen"`
}

func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		ID:                session.ID,
		AccountID:         session.AccountID,
		DeviceFingerprint: session.DeviceFingerprint,
		DeviceName:        session.DeviceName,
		Country:           session.Country,
		TrustLevel:        string(session.TrustLevel),
		ElevatedUntil:     session.ElevatedUntil,
		CreatedAt:         session.CreatedAt,
		LastSeen:          session.LastSeen,
	}
}

// LoginResponse returns the admitted session, its bearer token, and the
// anomaly classification computed against the account's device history.
type LoginResponse struct {
	Session        SessionPayload `json:"session"`
	Token          string         `json:"token"`
	Anomaly        string         `json:"anomaly"`
	StepUpRequired bool           `json:"step_up_required"`
}

// SessionListResponse wraps the active sessions of an account.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// RevokeAllResponse reports how many sessions a bulk revocation terminated.
type RevokeAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// ElevationStatusResponse reports the current trust state of a session.
type ElevationStatusResponse struct {
	Elevated      bool       `json:"elevated"`
	ElevatedUntil *time.Time `json:"elevated_until,omitempty"`
}

// StepUpChallengeResponse describes an issued challenge. DevCode carries the
// plaintext verification code in development mode only; production deliveries
// go through the notification channel.
type StepUpChallengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Scope       string    `json:"scope"`
	ExpiresAt   time.Time `json:"expires_at"`
	DevCode     *string   `json:"dev_code,omitempty"`
}

// VerifyChallengeRequest submits a code against a pending challenge.
type VerifyChallengeRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerifyChallengeResponse confirms a successful step-up verification.
type VerifyChallengeResponse struct {
	Status        string     `json:"status"`
	SessionID     string     `json:"session_id"`
	ElevatedUntil *time.Time `json:"elevated_until,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
