package domain

import "time"

// SessionCreatedEvent represents the payload for trust.session.created messages.
type SessionCreatedEvent struct {
	EventID    string
	SessionID  string
	AccountID  string
	DeviceFP   string
	DeviceName *string
	IPAddress  string
	Country    string
	CreatedAt  time.Time
	Metadata   map[string]any
}

// SessionRevokedEvent represents the payload for trust.session.revoked messages.
type SessionRevokedEvent struct {
	EventID    string
	SessionID  string
	AccountID  string
	DeviceName *string
	RevokedAt  time.Time
	RevokedBy  string
	Reason     string
	IPAddress  *string
	Metadata   map[string]any
}

// AnomalyDetectedEvent represents the payload for trust.anomaly.detected messages.
type AnomalyDetectedEvent struct {
	EventID    string
	SessionID  string
	AccountID  string
	Kind       AnomalyKind
	DeviceFP   string
	Country    string
	DetectedAt time.Time
	Metadata   map[string]any
}

// SessionElevatedEvent represents the payload for trust.session.elevated messages.
type SessionElevatedEvent struct {
	EventID       string
	SessionID     string
	AccountID     string
	ChallengeID   string
	Scope         ChallengeScope
	ElevatedAt    time.Time
	ElevatedUntil time.Time
	Metadata      map[string]any
}
