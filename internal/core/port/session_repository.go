package port

import (
	"context"
	"time"

	"github.com/yavuz-tech/helvino/internal/core/domain"
)

// SessionRepository deals with session storage. Implementations must complete
// or fail every call within the caller's context deadline; a timeout is
// reported as an error, never an indefinite suspension.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]domain.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time, ip string) error
	Revoke(ctx context.Context, sessionID string, reason string, at time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID string, reason string, at time.Time) (int, error)
	SetTrust(ctx context.Context, sessionID string, level domain.TrustLevel, elevatedUntil *time.Time) error
	StoreEvent(ctx context.Context, event domain.SessionEvent) error
}
