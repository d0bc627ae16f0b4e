package domain

import "time"

// ChallengeScope distinguishes which caller context a challenge belongs to.
// The state machine is identical for both scopes; the scope only selects the
// notification and redirect targets used by callers.
type ChallengeScope string

const (
	ChallengeScopeAdmin  ChallengeScope = "admin"
	ChallengeScopePortal ChallengeScope = "portal"
)

// Valid reports whether the scope is one of the supported values.
func (s ChallengeScope) Valid() bool {
	return s == ChallengeScopeAdmin || s == ChallengeScopePortal
}

// ChallengeStatus is the state of a step-up challenge. Every status other than
// pending is terminal.
type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeVerified ChallengeStatus = "verified"
	ChallengeExpired  ChallengeStatus = "expired"
	ChallengeFailed   ChallengeStatus = "failed"
)

// StepUpChallenge is a short-lived, single-use proof-of-presence request.
// CodeHash stores a digest of the verification code; the plaintext code exists
// only in the issuance response handed to the delivery channel.
type StepUpChallenge struct {
	ID        string
	SessionID string
	Scope     ChallengeScope
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
	Status    ChallengeStatus
}

// Terminal reports whether the challenge has left the pending state. A
// terminal challenge never transitions again.
func (c StepUpChallenge) Terminal() bool {
	return c.Status != ChallengePending
}

// ExpiredAt reports whether the challenge window has elapsed at the supplied moment.
func (c StepUpChallenge) ExpiredAt(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
