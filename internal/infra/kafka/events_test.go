package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "trust",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "helvino-trust",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func decodeEnvelope(t *testing.T, msg *sarama.ProducerMessage) map[string]any {
	t.Helper()

	bytes, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode returned error: %v", err)
	}

	var envelope map[string]any
	if err := json.Unmarshal(bytes, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return envelope
}

func TestPublishSessionRevoked(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	revokedAt := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	deviceName := "MacBook Pro"
	ip := "203.0.113.10"
	event := domain.SessionRevokedEvent{
		EventID:    "event-123",
		SessionID:  "session-456",
		AccountID:  "acct-789",
		DeviceName: &deviceName,
		RevokedAt:  revokedAt,
		RevokedBy:  "registry",
		Reason:     domain.RevokeReasonLimitExceeded,
		IPAddress:  &ip,
	}

	if err := publisher.PublishSessionRevoked(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionRevoked returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "trust.session.revoked" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		envelope := decodeEnvelope(t, msg)
		if envelope["event_id"] != "event-123" {
			t.Fatalf("event id = %v", envelope["event_id"])
		}
		if envelope["event_type"] != "trust.session.revoked" {
			t.Fatalf("event type = %v", envelope["event_type"])
		}
		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload missing: %v", envelope)
		}
		if payload["reason"] != domain.RevokeReasonLimitExceeded {
			t.Fatalf("payload reason = %v", payload["reason"])
		}
		if payload["device_name"] != deviceName {
			t.Fatalf("payload device name = %v", payload["device_name"])
		}
	default:
		t.Fatal("no message produced")
	}
}

func TestPublishAnomalyDetected(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	detectedAt := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	event := domain.AnomalyDetectedEvent{
		EventID:    "event-1",
		SessionID:  "session-1",
		AccountID:  "acct-1",
		Kind:       domain.AnomalyLocationChange,
		DeviceFP:   "fp-1",
		Country:    "DE",
		DetectedAt: detectedAt,
		Metadata:   map[string]any{"previous_country": "TR"},
	}

	if err := publisher.PublishAnomalyDetected(context.Background(), event); err != nil {
		t.Fatalf("PublishAnomalyDetected returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "trust.anomaly.detected" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		envelope := decodeEnvelope(t, msg)
		payload := envelope["payload"].(map[string]any)
		if payload["kind"] != "location_change" {
			t.Fatalf("payload kind = %v", payload["kind"])
		}
		metadata := payload["metadata"].(map[string]any)
		if metadata["previous_country"] != "TR" {
			t.Fatalf("metadata = %v", metadata)
		}
	default:
		t.Fatal("no message produced")
	}
}

func TestPublishSessionElevated(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	elevatedAt := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	event := domain.SessionElevatedEvent{
		EventID:       "event-2",
		SessionID:     "session-1",
		AccountID:     "acct-1",
		ChallengeID:   "challenge-1",
		Scope:         domain.ChallengeScopePortal,
		ElevatedAt:    elevatedAt,
		ElevatedUntil: elevatedAt.Add(15 * time.Minute),
	}

	if err := publisher.PublishSessionElevated(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionElevated returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "trust.session.elevated" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}
		envelope := decodeEnvelope(t, msg)
		payload := envelope["payload"].(map[string]any)
		if payload["scope"] != "portal" {
			t.Fatalf("payload scope = %v", payload["scope"])
		}
	default:
		t.Fatal("no message produced")
	}
}
