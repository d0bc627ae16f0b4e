package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/infra/logger"
)

type noopDispatcher struct{}

func (noopDispatcher) SendNewDeviceLogin(context.Context, port.NewDeviceLoginNotification) error {
	return nil
}

func (noopDispatcher) SendLocationChangeAlert(context.Context, port.LocationChangeNotification) error {
	return nil
}

func (noopDispatcher) SendSessionRevoked(context.Context, port.SessionRevokedNotification) error {
	return nil
}

// LoggingDispatcher records security notifications through structured logging.
// Rendering and delivery are owned by the platform notification service; this
// dispatcher stands in until that integration is wired, and keeps the contact
// address masked in log output.
type LoggingDispatcher struct {
	logger *zap.Logger
}

var _ port.NotificationDispatcher = (*LoggingDispatcher)(nil)

// NewLoggingDispatcher constructs a notification dispatcher backed by structured logging.
func NewLoggingDispatcher(log *zap.Logger) port.NotificationDispatcher {
	if log == nil {
		return noopDispatcher{}
	}
	return &LoggingDispatcher{logger: log}
}

// SendNewDeviceLogin records a first-login-from-device notification.
func (d *LoggingDispatcher) SendNewDeviceLogin(_ context.Context, payload port.NewDeviceLoginNotification) error {
	d.logger.Info("notification dispatched",
		zap.String("template", "new_device_login"),
		zap.String("email", logger.MaskEmail(payload.Email)),
		zap.String("device_name", payload.DeviceName),
		zap.String("location", payload.Location),
		zap.String("ip", logger.MaskIP(payload.IP)),
		zap.Time("login_at", payload.Time),
	)
	return nil
}

// SendLocationChangeAlert records a known-device-new-country alert.
func (d *LoggingDispatcher) SendLocationChangeAlert(_ context.Context, payload port.LocationChangeNotification) error {
	d.logger.Info("notification dispatched",
		zap.String("template", "location_change_alert"),
		zap.String("email", logger.MaskEmail(payload.Email)),
		zap.String("previous_location", payload.PreviousLocation),
		zap.String("new_location", payload.NewLocation),
		zap.String("lock_url", payload.LockURL),
	)
	return nil
}

// SendSessionRevoked records a session-eviction notice.
func (d *LoggingDispatcher) SendSessionRevoked(_ context.Context, payload port.SessionRevokedNotification) error {
	d.logger.Info("notification dispatched",
		zap.String("template", "session_revoked"),
		zap.String("email", logger.MaskEmail(payload.Email)),
		zap.String("device_name", payload.DeviceName),
		zap.String("sessions_url", payload.SessionsURL),
	)
	return nil
}
