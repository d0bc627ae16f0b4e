package port

import (
	"context"
	"time"
)

// NewDeviceLoginNotification carries the data for a first-login-from-device email.
type NewDeviceLoginNotification struct {
	Email      string
	DeviceName string
	Location   string
	IP         string
	Time       time.Time
}

// LocationChangeNotification carries the data for a known-device-new-country alert.
// LockURL points at the account-lock action handled outside the core.
type LocationChangeNotification struct {
	Email            string
	PreviousLocation string
	NewLocation      string
	LockURL          string
}

// SessionRevokedNotification tells the account holder one of their sessions
// was evicted, naming the device that lost its seat.
type SessionRevokedNotification struct {
	Email       string
	DeviceName  string
	SessionsURL string
}

// NotificationDispatcher fans security notifications out to the delivery
// pipeline. Rendering and delivery belong to the collaborator behind this
// interface; the core only supplies structured payloads. Dispatch failures
// never roll back the security decision that triggered them.
type NotificationDispatcher interface {
	SendNewDeviceLogin(ctx context.Context, payload NewDeviceLoginNotification) error
	SendLocationChangeAlert(ctx context.Context, payload LocationChangeNotification) error
	SendSessionRevoked(ctx context.Context, payload SessionRevokedNotification) error
}

// AccountDirectory resolves account contact details owned by the platform's
// account service; the core stores no profile data of its own.
type AccountDirectory interface {
	EmailForAccount(ctx context.Context, accountID string) (string, error)
}
