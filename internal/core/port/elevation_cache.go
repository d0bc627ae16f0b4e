package port

import (
	"context"
	"time"
)

// ElevationCache keeps a short-lived mirror of session elevation deadlines so
// hot-path trust checks avoid a database round trip. A cache miss or error is
// never authoritative; callers fall back to the session repository.
type ElevationCache interface {
	GetElevatedUntil(ctx context.Context, sessionID string) (time.Time, error)
	SetElevatedUntil(ctx context.Context, sessionID string, until time.Time, ttl time.Duration) error
	DeleteElevation(ctx context.Context, sessionID string) error
}
