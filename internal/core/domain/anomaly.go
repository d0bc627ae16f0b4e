package domain

// AnomalyKind classifies a login relative to the account's device history.
// At most one classification applies per login: an unseen device has no prior
// country history to compare against, so NewDevice takes precedence.
type AnomalyKind string

const (
	// AnomalyNone means the device and country were both seen before.
	AnomalyNone AnomalyKind = "none"
	// AnomalyNewDevice means the fingerprint has never been seen for the account.
	AnomalyNewDevice AnomalyKind = "new_device"
	// AnomalyLocationChange means a known device logged in from an unseen country.
	AnomalyLocationChange AnomalyKind = "location_change"
)

// RequiresStepUp reports whether the classification gates sensitive operations
// behind a step-up challenge.
func (k AnomalyKind) RequiresStepUp() bool {
	return k == AnomalyLocationChange
}
