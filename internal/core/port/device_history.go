package port

import (
	"context"
	"time"

	"github.com/yavuz-tech/helvino/internal/core/domain"
)

// DeviceHistoryRepository is the durable per-account memory of previously seen
// devices and countries. Lookup returns repository.ErrNotFound when the
// fingerprint has never been recorded for the account; KnownCountries on the
// returned record are ordered by most recent sighting first.
type DeviceHistoryRepository interface {
	Lookup(ctx context.Context, accountID, fingerprint string) (*domain.DeviceRecord, error)
	RecordSeen(ctx context.Context, accountID, fingerprint, country string, at time.Time) error
}
