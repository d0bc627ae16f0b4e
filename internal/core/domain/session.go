package domain

import "time"

// TrustLevel describes how much a session is currently trusted.
type TrustLevel string

const (
	// TrustStandard is the level every session starts at.
	TrustStandard TrustLevel = "standard"
	// TrustElevated is granted only through a verified step-up challenge and is time-bounded.
	TrustElevated TrustLevel = "elevated"
)

// Well-known revocation reasons recorded on evicted or terminated sessions.
const (
	RevokeReasonLimitExceeded = "limit_exceeded"
	RevokeReasonLogout        = "user_logout"
	RevokeReasonSecurityLock  = "security_lock"
)

// StepUpRequiredCode is the sentinel code callers check to decide whether to
// prompt for a step-up challenge. The exact string is part of the external
// contract consumed by the portal and widget backends.
const StepUpRequiredCode = "STEP_UP_REQUIRED"

// Session represents one authenticated account-device pairing tracked by the registry.
type Session struct {
	ID                string
	AccountID         string
	DeviceFingerprint string
	DeviceName        *string
	IP                string
	Country           string
	TrustLevel        TrustLevel
	ElevatedUntil     *time.Time
	CreatedAt         time.Time
	LastSeen          time.Time
	RevokedAt         *time.Time
	RevokeReason      *string
}

// IsActive reports whether the session still counts against the concurrency cap.
func (s Session) IsActive() bool {
	return s.RevokedAt == nil
}

// IsElevated reports whether the session holds elevated trust at the supplied
// moment. Elevation is re-derived on every call instead of being eagerly
// expired, so clock skew can only deny access, never grant it.
func (s Session) IsElevated(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if s.TrustLevel != TrustElevated || s.ElevatedUntil == nil {
		return false
	}
	return at.Before(*s.ElevatedUntil)
}

// Touch updates last-seen metadata when activity occurs.
func (s *Session) Touch(at time.Time, ip string) {
	s.LastSeen = at
	if ip != "" {
		s.IP = ip
	}
}

// Revoke marks the session as revoked. Returns true when the session changed
// state; revoking an already-revoked session is a no-op.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}

// Elevate grants elevated trust until the supplied deadline.
func (s *Session) Elevate(until time.Time) {
	s.TrustLevel = TrustElevated
	untilCopy := until
	s.ElevatedUntil = &untilCopy
}

// SessionEvent captures lifecycle changes for sessions for the audit trail.
type SessionEvent struct {
	ID        string
	SessionID string
	Kind      string
	At        time.Time
	IP        *string
	Details   map[string]any
}
