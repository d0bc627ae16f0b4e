package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/infra/logger"
	"github.com/yavuz-tech/helvino/internal/infra/telemetry"
	"github.com/yavuz-tech/helvino/internal/repository"
)

// AnomalyDetector classifies logins against per-account device history and
// fans out the matching security notifications. It implements LoginInspector.
type AnomalyDetector struct {
	history  port.DeviceHistoryRepository
	accounts port.AccountDirectory
	notifier port.NotificationDispatcher
	events   port.EventPublisher
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	lockURL  string
	now      func() time.Time
}

var _ LoginInspector = (*AnomalyDetector)(nil)

// NewAnomalyDetector constructs an AnomalyDetector.
func NewAnomalyDetector(history port.DeviceHistoryRepository, accounts port.AccountDirectory, notifier port.NotificationDispatcher, events port.EventPublisher, log *zap.Logger) *AnomalyDetector {
	if log == nil {
		log = zap.NewNop()
	}
	detector := &AnomalyDetector{
		history:  history,
		accounts: accounts,
		notifier: notifier,
		events:   events,
		logger:   log,
	}
	detector.now = func() time.Time { return time.Now().UTC() }
	return detector
}

// WithClock overrides the internal clock for deterministic tests.
func (d *AnomalyDetector) WithClock(clock func() time.Time) {
	if clock != nil {
		d.now = clock
	}
}

// WithMetrics injects the Prometheus collectors.
func (d *AnomalyDetector) WithMetrics(metrics *telemetry.Metrics) *AnomalyDetector {
	if metrics != nil {
		d.metrics = metrics
	}
	return d
}

// WithLinks sets the account-lock URL embedded in location-change alerts.
func (d *AnomalyDetector) WithLinks(lockURL string) *AnomalyDetector {
	if strings.TrimSpace(lockURL) != "" {
		d.lockURL = strings.TrimSpace(lockURL)
	}
	return d
}

// InspectLogin classifies the admitted session. An unknown fingerprint wins
// over a country mismatch when both would apply: a brand-new device is the
// stronger signal, and its notification already names the login location.
func (d *AnomalyDetector) InspectLogin(ctx context.Context, session *domain.Session) (domain.AnomalyKind, error) {
	if session == nil {
		return domain.AnomalyNone, fmt.Errorf("session is required")
	}
	if d.history == nil {
		return domain.AnomalyNone, fmt.Errorf("device history repository not configured")
	}

	kind := domain.AnomalyNone
	previousCountry := ""

	record, err := d.history.Lookup(ctx, session.AccountID, session.DeviceFingerprint)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		kind = domain.AnomalyNewDevice
	case err != nil:
		return domain.AnomalyNone, fmt.Errorf("lookup device history: %w", err)
	case session.Country != "" && !record.HasCountry(session.Country):
		kind = domain.AnomalyLocationChange
		previousCountry = record.LastCountry()
	}

	// The sighting is recorded regardless of classification so the next login
	// from this device and country is quiet.
	if err := d.history.RecordSeen(ctx, session.AccountID, session.DeviceFingerprint, session.Country, d.now()); err != nil {
		d.logger.Warn("record device sighting failed",
			zap.String("account_id", session.AccountID),
			zap.Error(err))
	}

	if kind == domain.AnomalyNone {
		return kind, nil
	}

	if d.metrics != nil {
		d.metrics.Anomalies.WithLabelValues(string(kind)).Inc()
	}

	d.logger.Info("login anomaly detected",
		zap.String("session_id", session.ID),
		zap.String("account_id", session.AccountID),
		zap.String("kind", string(kind)),
		zap.String("country", session.Country),
		zap.String("ip", logger.MaskIP(session.IP)))

	d.notify(ctx, session, kind, previousCountry)
	d.publish(ctx, session, kind, previousCountry)

	return kind, nil
}

func (d *AnomalyDetector) notify(ctx context.Context, session *domain.Session, kind domain.AnomalyKind, previousCountry string) {
	if d.notifier == nil || d.accounts == nil {
		return
	}

	email, err := d.accounts.EmailForAccount(ctx, session.AccountID)
	if err != nil {
		d.logger.Warn("resolve account email failed", zap.String("account_id", session.AccountID), zap.Error(err))
		return
	}

	switch kind {
	case domain.AnomalyNewDevice:
		payload := port.NewDeviceLoginNotification{
			Email:      email,
			DeviceName: deviceNameOrFallback(session.DeviceName),
			Location:   session.Country,
			IP:         session.IP,
			Time:       session.CreatedAt,
		}
		err = d.notifier.SendNewDeviceLogin(ctx, payload)
	case domain.AnomalyLocationChange:
		payload := port.LocationChangeNotification{
			Email:            email,
			PreviousLocation: previousCountry,
			NewLocation:      session.Country,
			LockURL:          d.lockURL,
		}
		err = d.notifier.SendLocationChangeAlert(ctx, payload)
	default:
		return
	}

	if err != nil {
		d.logger.Warn("send anomaly notification failed",
			zap.String("session_id", session.ID),
			zap.String("kind", string(kind)),
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err))
	}
}

func (d *AnomalyDetector) publish(ctx context.Context, session *domain.Session, kind domain.AnomalyKind, previousCountry string) {
	if d.events == nil {
		return
	}

	var metadata map[string]any
	if previousCountry != "" {
		metadata = map[string]any{"previous_country": previousCountry}
	}
	event := domain.AnomalyDetectedEvent{
		EventID:    uuid.NewString(),
		SessionID:  session.ID,
		AccountID:  session.AccountID,
		Kind:       kind,
		DeviceFP:   session.DeviceFingerprint,
		Country:    session.Country,
		DetectedAt: d.now(),
		Metadata:   metadata,
	}
	if err := d.events.PublishAnomalyDetected(ctx, event); err != nil {
		d.logger.Warn("publish anomaly detected failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}
