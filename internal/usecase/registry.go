package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/infra/logger"
	"github.com/yavuz-tech/helvino/internal/infra/telemetry"
	"github.com/yavuz-tech/helvino/internal/repository"
)

var (
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked indicates the session has already been terminated.
	ErrSessionRevoked = errors.New("session already revoked")
	// ErrStepUpRequired indicates the session must complete a step-up challenge
	// before the protected operation is allowed.
	ErrStepUpRequired = errors.New("step-up verification required")
)

const (
	defaultSessionLimit      = 3
	defaultElevationDuration = 15 * time.Minute
)

// LoginInspector classifies a freshly created session against the device
// history of its account.
type LoginInspector interface {
	InspectLogin(ctx context.Context, session *domain.Session) (domain.AnomalyKind, error)
}

// CreateSessionInput carries the login attributes captured by the transport layer.
type CreateSessionInput struct {
	AccountID         string
	DeviceFingerprint string
	DeviceName        *string
	IP                string
	Country           string
}

// SessionRegistry admits, tracks, and revokes account sessions while enforcing
// the per-account concurrency cap.
type SessionRegistry struct {
	sessions       port.SessionRepository
	accounts       port.AccountDirectory
	notifier       port.NotificationDispatcher
	events         port.EventPublisher
	elevationCache port.ElevationCache
	inspector      LoginInspector
	metrics        *telemetry.Metrics
	logger         *zap.Logger
	limit          int
	elevationTTL   time.Duration
	sessionsURL    string
	accountLocks   keyedMutex
	now            func() time.Time
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(sessions port.SessionRepository, accounts port.AccountDirectory, notifier port.NotificationDispatcher, events port.EventPublisher, log *zap.Logger) *SessionRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	registry := &SessionRegistry{
		sessions:     sessions,
		accounts:     accounts,
		notifier:     notifier,
		events:       events,
		logger:       log,
		limit:        defaultSessionLimit,
		elevationTTL: defaultElevationDuration,
	}
	registry.now = func() time.Time { return time.Now().UTC() }
	return registry
}

// WithClock overrides the internal clock for deterministic tests.
func (r *SessionRegistry) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// WithLimit overrides the per-account active session cap.
func (r *SessionRegistry) WithLimit(limit int) *SessionRegistry {
	if limit > 0 {
		r.limit = limit
	}
	return r
}

// WithElevationDuration overrides how long a successful step-up keeps the session elevated.
func (r *SessionRegistry) WithElevationDuration(ttl time.Duration) *SessionRegistry {
	if ttl > 0 {
		r.elevationTTL = ttl
	}
	return r
}

// WithElevationCache injects a cache used as the first-line answer for elevation checks.
func (r *SessionRegistry) WithElevationCache(cache port.ElevationCache) *SessionRegistry {
	if cache != nil {
		r.elevationCache = cache
	}
	return r
}

// WithLoginInspector injects the anomaly classifier consulted after each admitted login.
func (r *SessionRegistry) WithLoginInspector(inspector LoginInspector) *SessionRegistry {
	if inspector != nil {
		r.inspector = inspector
	}
	return r
}

// WithMetrics injects the Prometheus collectors.
func (r *SessionRegistry) WithMetrics(metrics *telemetry.Metrics) *SessionRegistry {
	if metrics != nil {
		r.metrics = metrics
	}
	return r
}

// WithLinks sets the session-management URL embedded in revocation notifications.
func (r *SessionRegistry) WithLinks(sessionsURL string) *SessionRegistry {
	if strings.TrimSpace(sessionsURL) != "" {
		r.sessionsURL = strings.TrimSpace(sessionsURL)
	}
	return r
}

// CreateSession admits a new session for the account, evicting the
// least-recently-seen active session when the account is at its cap. The
// returned anomaly kind reflects the device-history classification of the login.
func (r *SessionRegistry) CreateSession(ctx context.Context, input CreateSessionInput) (*domain.Session, domain.AnomalyKind, error) {
	accountID := strings.TrimSpace(input.AccountID)
	fingerprint := strings.TrimSpace(input.DeviceFingerprint)
	if accountID == "" {
		return nil, domain.AnomalyNone, fmt.Errorf("account id is required")
	}
	if fingerprint == "" {
		return nil, domain.AnomalyNone, fmt.Errorf("device fingerprint is required")
	}
	if r.sessions == nil {
		return nil, domain.AnomalyNone, fmt.Errorf("session repository not configured")
	}

	// The count/evict/insert sequence must be atomic per account so that
	// concurrent logins cannot overshoot the cap.
	unlock := r.accountLocks.lock(accountID)
	defer unlock()

	now := r.now()

	active, err := r.sessions.ListActiveByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.AnomalyNone, fmt.Errorf("list active sessions: %w", err)
	}

	for len(active) >= r.limit {
		oldest := oldestByLastSeen(active)
		if oldest == nil {
			break
		}
		if err := r.evict(ctx, oldest, now); err != nil {
			return nil, domain.AnomalyNone, err
		}
		active = withoutSession(active, oldest.ID)
	}

	session := &domain.Session{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		DeviceFingerprint: fingerprint,
		DeviceName:        input.DeviceName,
		IP:                strings.TrimSpace(input.IP),
		Country:           strings.TrimSpace(input.Country),
		TrustLevel:        domain.TrustStandard,
		CreatedAt:         now,
		LastSeen:          now,
	}

	if err := r.sessions.Create(ctx, *session); err != nil {
		return nil, domain.AnomalyNone, fmt.Errorf("create session: %w", err)
	}

	if r.metrics != nil {
		r.metrics.SessionsCreated.Inc()
	}

	r.recordEvent(ctx, session, "session.created", now, map[string]any{
		"device_fingerprint": session.DeviceFingerprint,
		"country":            session.Country,
	})

	if r.events != nil {
		publish := domain.SessionCreatedEvent{
			EventID:    uuid.NewString(),
			SessionID:  session.ID,
			AccountID:  session.AccountID,
			DeviceFP:   session.DeviceFingerprint,
			DeviceName: session.DeviceName,
			IPAddress:  session.IP,
			Country:    session.Country,
			CreatedAt:  now,
		}
		if err := r.events.PublishSessionCreated(ctx, publish); err != nil {
			r.logger.Warn("publish session created failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	anomaly := domain.AnomalyNone
	if r.inspector != nil {
		kind, inspectErr := r.inspector.InspectLogin(ctx, session)
		if inspectErr != nil {
			// The session is already admitted; a history failure must not undo the login.
			r.logger.Warn("login inspection failed",
				zap.String("session_id", session.ID),
				zap.String("account_id", session.AccountID),
				zap.Error(inspectErr))
		} else {
			anomaly = kind
		}
	}

	r.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("account_id", session.AccountID),
		zap.String("ip", logger.MaskIP(session.IP)),
		zap.String("anomaly", string(anomaly)))

	return session, anomaly, nil
}

// GetSession fetches a session by identifier.
func (r *SessionRegistry) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if r.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListActiveSessions returns the non-revoked sessions of the account, most
// recently seen first.
func (r *SessionRegistry) ListActiveSessions(ctx context.Context, accountID string) ([]domain.Session, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	sessions, err := r.sessions.ListActiveByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastSeen.After(sessions[j].LastSeen)
	})
	return sessions, nil
}

// Touch records activity on the session, refreshing its last-seen timestamp
// and caller IP.
func (r *SessionRegistry) Touch(ctx context.Context, sessionID, ip string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return ErrSessionRevoked
	}

	if err := r.sessions.Touch(ctx, sessionID, r.now(), strings.TrimSpace(ip)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke terminates the session. Revoking an already revoked session is a no-op.
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID, reason string) (*domain.Session, error) {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil {
		return session, nil
	}

	now := r.now()
	reason = normalizeRevokeReason(reason)

	if err := r.sessions.Revoke(ctx, session.ID, reason, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	session.Revoke(now, reason)
	r.dropElevation(ctx, session.ID)

	r.recordEvent(ctx, session, "session.revoked", now, map[string]any{"reason": reason})
	r.publishRevoked(ctx, session, now, reason, "account")

	return session, nil
}

// RevokeAllForAccount terminates every active session owned by the account and
// returns how many were revoked. Used for logout-everywhere and for the
// lock-account action offered by location-change alerts.
func (r *SessionRegistry) RevokeAllForAccount(ctx context.Context, accountID, reason string) (int, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, fmt.Errorf("account id is required")
	}

	unlock := r.accountLocks.lock(accountID)
	defer unlock()

	now := r.now()
	reason = normalizeRevokeReason(reason)

	active, err := r.sessions.ListActiveByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	count, err := r.sessions.RevokeAllForAccount(ctx, accountID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("revoke account sessions: %w", err)
	}

	for i := range active {
		session := active[i]
		session.Revoke(now, reason)
		r.dropElevation(ctx, session.ID)
		r.recordEvent(ctx, &session, "session.revoked", now, map[string]any{"reason": reason})
		r.publishRevoked(ctx, &session, now, reason, "account")
	}

	r.logger.Info("account sessions revoked",
		zap.String("account_id", accountID),
		zap.String("reason", reason),
		zap.Int("count", count))

	return count, nil
}

// Elevate raises the session's trust level until now plus the configured
// elevation duration.
func (r *SessionRegistry) Elevate(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	now := r.now()
	until := now.Add(r.elevationTTL)

	if err := r.sessions.SetTrust(ctx, session.ID, domain.TrustElevated, &until); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("set session trust: %w", err)
	}
	session.Elevate(until)

	if r.elevationCache != nil {
		if cacheErr := r.elevationCache.SetElevatedUntil(ctx, session.ID, until, r.elevationTTL); cacheErr != nil {
			r.logger.Warn("cache session elevation failed", zap.String("session_id", session.ID), zap.Error(cacheErr))
		}
	}

	r.recordEvent(ctx, session, "session.elevated", now, map[string]any{
		"elevated_until": until.Format(time.RFC3339),
	})

	return session, nil
}

// IsElevated reports whether the session currently holds elevated trust.
// Elevation lapses by timestamp comparison; no background job is involved.
func (r *SessionRegistry) IsElevated(ctx context.Context, sessionID string) (bool, error) {
	if r.elevationCache != nil {
		until, err := r.elevationCache.GetElevatedUntil(ctx, sessionID)
		if err == nil && !until.IsZero() {
			return until.After(r.now()), nil
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("elevation cache lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.IsElevated(r.now()), nil
}

// RequireElevated returns ErrStepUpRequired unless the session holds elevated
// trust, and ErrSessionNotFound / ErrSessionRevoked for unusable sessions.
func (r *SessionRegistry) RequireElevated(ctx context.Context, sessionID string) error {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.RevokedAt != nil {
		return ErrSessionRevoked
	}
	if session.IsElevated(r.now()) {
		return nil
	}

	if r.elevationCache != nil {
		if until, cacheErr := r.elevationCache.GetElevatedUntil(ctx, sessionID); cacheErr == nil && until.After(r.now()) {
			return nil
		}
	}
	return ErrStepUpRequired
}

func (r *SessionRegistry) evict(ctx context.Context, session *domain.Session, now time.Time) error {
	if err := r.sessions.Revoke(ctx, session.ID, domain.RevokeReasonLimitExceeded, now); err != nil {
		return fmt.Errorf("evict session: %w", err)
	}
	session.Revoke(now, domain.RevokeReasonLimitExceeded)
	r.dropElevation(ctx, session.ID)

	if r.metrics != nil {
		r.metrics.SessionsEvicted.Inc()
	}

	r.recordEvent(ctx, session, "session.revoked", now, map[string]any{
		"reason": domain.RevokeReasonLimitExceeded,
	})
	r.publishRevoked(ctx, session, now, domain.RevokeReasonLimitExceeded, "registry")
	r.notifyRevoked(ctx, session)

	r.logger.Info("session evicted",
		zap.String("session_id", session.ID),
		zap.String("account_id", session.AccountID))
	return nil
}

func (r *SessionRegistry) notifyRevoked(ctx context.Context, session *domain.Session) {
	if r.notifier == nil || r.accounts == nil {
		return
	}
	email, err := r.accounts.EmailForAccount(ctx, session.AccountID)
	if err != nil {
		r.logger.Warn("resolve account email failed", zap.String("account_id", session.AccountID), zap.Error(err))
		return
	}
	notification := port.SessionRevokedNotification{
		Email:       email,
		DeviceName:  deviceNameOrFallback(session.DeviceName),
		SessionsURL: r.sessionsURL,
	}
	if err := r.notifier.SendSessionRevoked(ctx, notification); err != nil {
		r.logger.Warn("send session revoked notification failed",
			zap.String("session_id", session.ID),
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err))
	}
}

func (r *SessionRegistry) publishRevoked(ctx context.Context, session *domain.Session, at time.Time, reason, revokedBy string) {
	if r.events == nil {
		return
	}
	ip := session.IP
	publish := domain.SessionRevokedEvent{
		EventID:    uuid.NewString(),
		SessionID:  session.ID,
		AccountID:  session.AccountID,
		DeviceName: session.DeviceName,
		RevokedAt:  at,
		RevokedBy:  revokedBy,
		Reason:     reason,
		IPAddress:  &ip,
	}
	if err := r.events.PublishSessionRevoked(ctx, publish); err != nil {
		r.logger.Warn("publish session revoked failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (r *SessionRegistry) recordEvent(ctx context.Context, session *domain.Session, kind string, at time.Time, details map[string]any) {
	var ip *string
	if session.IP != "" {
		value := session.IP
		ip = &value
	}
	event := domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Kind:      kind,
		At:        at,
		IP:        ip,
		Details:   details,
	}
	if err := r.sessions.StoreEvent(ctx, event); err != nil {
		r.logger.Warn("store session event failed",
			zap.String("session_id", session.ID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

func (r *SessionRegistry) dropElevation(ctx context.Context, sessionID string) {
	if r.elevationCache == nil {
		return
	}
	if err := r.elevationCache.DeleteElevation(ctx, sessionID); err != nil {
		r.logger.Warn("drop cached elevation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// oldestByLastSeen picks the eviction victim. Ties on LastSeen fall back to
// CreatedAt and then the session ID so concurrent logins evict deterministically.
func oldestByLastSeen(sessions []domain.Session) *domain.Session {
	var oldest *domain.Session
	for i := range sessions {
		candidate := &sessions[i]
		if oldest == nil {
			oldest = candidate
			continue
		}
		switch {
		case candidate.LastSeen.Before(oldest.LastSeen):
			oldest = candidate
		case candidate.LastSeen.Equal(oldest.LastSeen):
			if candidate.CreatedAt.Before(oldest.CreatedAt) ||
				(candidate.CreatedAt.Equal(oldest.CreatedAt) && candidate.ID < oldest.ID) {
				oldest = candidate
			}
		}
	}
	return oldest
}

func withoutSession(sessions []domain.Session, id string) []domain.Session {
	remaining := make([]domain.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.ID == id {
			continue
		}
		remaining = append(remaining, session)
	}
	return remaining
}

func deviceNameOrFallback(name *string) string {
	if name != nil && strings.TrimSpace(*name) != "" {
		return strings.TrimSpace(*name)
	}
	return "Unknown device"
}

func normalizeRevokeReason(reason string) string {
	trimmed := strings.TrimSpace(strings.ToLower(reason))
	if trimmed == "" {
		return domain.RevokeReasonLogout
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
