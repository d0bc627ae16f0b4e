package port

import (
	"context"

	"github.com/yavuz-tech/helvino/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishAnomalyDetected(ctx context.Context, event domain.AnomalyDetectedEvent) error
	PublishSessionElevated(ctx context.Context, event domain.SessionElevatedEvent) error
}
