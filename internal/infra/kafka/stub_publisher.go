package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionCreated logs trust.session.created events.
func (p *StubPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	payload := map[string]any{
		"session_id":         event.SessionID,
		"account_id":         event.AccountID,
		"device_fingerprint": event.DeviceFP,
		"device_name":        event.DeviceName,
		"ip_address":         event.IPAddress,
		"country":            event.Country,
		"created_at":         event.CreatedAt,
		"metadata":           event.Metadata,
	}
	p.logEvent("trust.session.created", event.AccountID, event.CreatedAt, payload)
	return nil
}

// PublishSessionRevoked logs trust.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id":  event.SessionID,
		"account_id":  event.AccountID,
		"device_name": event.DeviceName,
		"revoked_at":  event.RevokedAt,
		"revoked_by":  event.RevokedBy,
		"reason":      event.Reason,
		"ip_address":  event.IPAddress,
		"metadata":    event.Metadata,
	}
	p.logEvent("trust.session.revoked", event.AccountID, event.RevokedAt, payload)
	return nil
}

// PublishAnomalyDetected logs trust.anomaly.detected events.
func (p *StubPublisher) PublishAnomalyDetected(_ context.Context, event domain.AnomalyDetectedEvent) error {
	payload := map[string]any{
		"session_id":         event.SessionID,
		"account_id":         event.AccountID,
		"kind":               string(event.Kind),
		"device_fingerprint": event.DeviceFP,
		"country":            event.Country,
		"detected_at":        event.DetectedAt,
		"metadata":           event.Metadata,
	}
	p.logEvent("trust.anomaly.detected", event.AccountID, event.DetectedAt, payload)
	return nil
}

// PublishSessionElevated logs trust.session.elevated events.
func (p *StubPublisher) PublishSessionElevated(_ context.Context, event domain.SessionElevatedEvent) error {
	payload := map[string]any{
		"session_id":     event.SessionID,
		"account_id":     event.AccountID,
		"challenge_id":   event.ChallengeID,
		"scope":          string(event.Scope),
		"elevated_at":    event.ElevatedAt,
		"elevated_until": event.ElevatedUntil,
		"metadata":       event.Metadata,
	}
	p.logEvent("trust.session.elevated", event.AccountID, event.ElevatedAt, payload)
	return nil
}
