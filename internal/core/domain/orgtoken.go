package domain

import "time"

// OrgTokenPayload is the signed body of an organization credential. The token
// binds a widget or portal request to an organization; the signature covers
// every field, so any mutation invalidates the credential.
type OrgTokenPayload struct {
	OrgID     string     `json:"org_id"`
	OrgKey    string     `json:"org_key"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the payload carries an elapsed expiry.
func (p OrgTokenPayload) Expired(at time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return !p.ExpiresAt.After(at)
}
