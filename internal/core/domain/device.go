package domain

import (
	"strings"
	"time"
)

// DeviceRecord is the per-account memory of a previously seen device. The
// repository returns KnownCountries ordered by most recent sighting first.
type DeviceRecord struct {
	AccountID      string
	Fingerprint    string
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	KnownCountries []string
}

// HasCountry reports whether the country has been seen for this device before.
// Comparison is case-insensitive; country codes are stored upper-cased.
func (r DeviceRecord) HasCountry(country string) bool {
	for _, known := range r.KnownCountries {
		if strings.EqualFold(known, country) {
			return true
		}
	}
	return false
}

// LastCountry returns the most recently seen country, or "" for an empty record.
func (r DeviceRecord) LastCountry() string {
	if len(r.KnownCountries) == 0 {
		return ""
	}
	return r.KnownCountries[0]
}
