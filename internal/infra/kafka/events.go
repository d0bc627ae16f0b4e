package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionCreated publishes trust.session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID         string         `json:"session_id"`
		AccountID         string         `json:"account_id"`
		DeviceFingerprint string         `json:"device_fingerprint"`
		DeviceName        *string        `json:"device_name,omitempty"`
		IPAddress         string         `json:"ip_address,omitempty"`
		Country           string         `json:"country,omitempty"`
		CreatedAt         time.Time      `json:"created_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:         event.SessionID,
		AccountID:         event.AccountID,
		DeviceFingerprint: event.DeviceFP,
		DeviceName:        event.DeviceName,
		IPAddress:         event.IPAddress,
		Country:           event.Country,
		CreatedAt:         event.CreatedAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, "trust.session.created", event.AccountID, event.CreatedAt, payload)
}

// PublishSessionRevoked publishes trust.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID  string         `json:"session_id"`
		AccountID  string         `json:"account_id"`
		DeviceName *string        `json:"device_name,omitempty"`
		RevokedAt  time.Time      `json:"revoked_at"`
		RevokedBy  string         `json:"revoked_by"`
		Reason     string         `json:"reason"`
		IPAddress  *string        `json:"ip_address,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:  event.SessionID,
		AccountID:  event.AccountID,
		DeviceName: event.DeviceName,
		RevokedAt:  event.RevokedAt.UTC(),
		RevokedBy:  event.RevokedBy,
		Reason:     event.Reason,
		IPAddress:  event.IPAddress,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "trust.session.revoked", event.AccountID, event.RevokedAt, payload)
}

// PublishAnomalyDetected publishes trust.anomaly.detected events.
func (p *EventPublisher) PublishAnomalyDetected(ctx context.Context, event domain.AnomalyDetectedEvent) error {
	payload := struct {
		SessionID         string         `json:"session_id"`
		AccountID         string         `json:"account_id"`
		Kind              string         `json:"kind"`
		DeviceFingerprint string         `json:"device_fingerprint"`
		Country           string         `json:"country,omitempty"`
		DetectedAt        time.Time      `json:"detected_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:         event.SessionID,
		AccountID:         event.AccountID,
		Kind:              string(event.Kind),
		DeviceFingerprint: event.DeviceFP,
		Country:           event.Country,
		DetectedAt:        event.DetectedAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, "trust.anomaly.detected", event.AccountID, event.DetectedAt, payload)
}

// PublishSessionElevated publishes trust.session.elevated events.
func (p *EventPublisher) PublishSessionElevated(ctx context.Context, event domain.SessionElevatedEvent) error {
	payload := struct {
		SessionID     string         `json:"session_id"`
		AccountID     string         `json:"account_id"`
		ChallengeID   string         `json:"challenge_id,omitempty"`
		Scope         string         `json:"scope,omitempty"`
		ElevatedAt    time.Time      `json:"elevated_at"`
		ElevatedUntil time.Time      `json:"elevated_until"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:     event.SessionID,
		AccountID:     event.AccountID,
		ChallengeID:   event.ChallengeID,
		Scope:         string(event.Scope),
		ElevatedAt:    event.ElevatedAt.UTC(),
		ElevatedUntil: event.ElevatedUntil.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "trust.session.elevated", event.AccountID, event.ElevatedAt, payload)
}
