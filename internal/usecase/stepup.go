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
	"github.com/yavuz-tech/helvino/internal/infra/security"
	"github.com/yavuz-tech/helvino/internal/infra/telemetry"
	"github.com/yavuz-tech/helvino/internal/repository"
)

var (
	// ErrChallengeNotFound indicates that the requested challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeNotPending indicates the challenge already reached a terminal state.
	ErrChallengeNotPending = errors.New("challenge is not pending")
	// ErrChallengeExpired indicates the verification window has elapsed.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeAttemptsExceeded indicates the attempt budget was spent; the
	// challenge transitions to failed and cannot be retried.
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	// ErrInvalidChallengeCode indicates the submitted code did not match.
	ErrInvalidChallengeCode = errors.New("invalid challenge code")
	// ErrInvalidChallengeScope indicates an unsupported challenge scope.
	ErrInvalidChallengeScope = errors.New("invalid challenge scope")
)

const (
	defaultChallengeTTL = 10 * time.Minute
	defaultMaxAttempts  = 5
	defaultCodeLength   = 6
)

// SessionElevator is the slice of the registry the step-up manager depends on.
type SessionElevator interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	Elevate(ctx context.Context, sessionID string) (*domain.Session, error)
}

// StepUpManager issues and verifies step-up challenges and elevates the
// session when a challenge succeeds.
type StepUpManager struct {
	challenges     port.ChallengeRepository
	registry       SessionElevator
	events         port.EventPublisher
	metrics        *telemetry.Metrics
	logger         *zap.Logger
	ttl            time.Duration
	maxAttempts    int
	codeLength     int
	challengeLocks keyedMutex
	now            func() time.Time
}

// NewStepUpManager constructs a StepUpManager.
func NewStepUpManager(challenges port.ChallengeRepository, registry SessionElevator, events port.EventPublisher, log *zap.Logger) *StepUpManager {
	if log == nil {
		log = zap.NewNop()
	}
	manager := &StepUpManager{
		challenges:  challenges,
		registry:    registry,
		events:      events,
		logger:      log,
		ttl:         defaultChallengeTTL,
		maxAttempts: defaultMaxAttempts,
		codeLength:  defaultCodeLength,
	}
	manager.now = func() time.Time { return time.Now().UTC() }
	return manager
}

// WithClock overrides the internal clock for deterministic tests.
func (m *StepUpManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// WithPolicy overrides the challenge TTL, attempt budget, and code length.
func (m *StepUpManager) WithPolicy(ttl time.Duration, maxAttempts, codeLength int) *StepUpManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
	if codeLength > 0 {
		m.codeLength = codeLength
	}
	return m
}

// WithMetrics injects the Prometheus collectors.
func (m *StepUpManager) WithMetrics(metrics *telemetry.Metrics) *StepUpManager {
	if metrics != nil {
		m.metrics = metrics
	}
	return m
}

// Issue creates a pending challenge for the session and returns it together
// with the plaintext code for the delivery channel. The code never touches
// storage; only its hash does.
func (m *StepUpManager) Issue(ctx context.Context, sessionID string, scope domain.ChallengeScope) (*domain.StepUpChallenge, string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, "", fmt.Errorf("session id is required")
	}
	if !scope.Valid() {
		return nil, "", ErrInvalidChallengeScope
	}
	if m.challenges == nil {
		return nil, "", fmt.Errorf("challenge repository not configured")
	}
	if m.registry == nil {
		return nil, "", fmt.Errorf("session registry not configured")
	}

	session, err := m.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.RevokedAt != nil {
		// A revoked session must not be able to re-arm itself.
		return nil, "", ErrSessionNotFound
	}

	code, err := security.GenerateNumericCode(m.codeLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate challenge code: %w", err)
	}

	now := m.now()
	challenge := domain.StepUpChallenge{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Scope:     scope,
		CodeHash:  security.HashCode(code),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		Status:    domain.ChallengePending,
	}

	if err := m.challenges.Create(ctx, challenge); err != nil {
		return nil, "", fmt.Errorf("create challenge: %w", err)
	}

	if m.metrics != nil {
		m.metrics.ChallengesIssued.WithLabelValues(string(scope)).Inc()
	}

	m.logger.Info("step-up challenge issued",
		zap.String("challenge_id", challenge.ID),
		zap.String("session_id", session.ID),
		zap.String("scope", string(scope)))

	return &challenge, code, nil
}

// Verify checks the submitted code against the pending challenge. A correct
// code transitions the challenge to verified and elevates its session. Each
// wrong submission consumes one attempt; spending the final attempt on a wrong
// code fails the challenge permanently. Expiry is applied lazily here: the
// first touch after the deadline transitions the challenge to expired.
func (m *StepUpManager) Verify(ctx context.Context, challengeID, code string) (*domain.StepUpChallenge, error) {
	if strings.TrimSpace(challengeID) == "" {
		return nil, fmt.Errorf("challenge id is required")
	}
	if m.challenges == nil {
		return nil, fmt.Errorf("challenge repository not configured")
	}

	unlock := m.challengeLocks.lock(challengeID)
	defer unlock()

	challenge, err := m.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	if challenge.Terminal() {
		return challenge, ErrChallengeNotPending
	}

	now := m.now()
	if challenge.ExpiredAt(now) {
		challenge.Status = domain.ChallengeExpired
		if err := m.challenges.Update(ctx, *challenge); err != nil {
			return nil, fmt.Errorf("expire challenge: %w", err)
		}
		m.countOutcome(domain.ChallengeExpired)
		return challenge, ErrChallengeExpired
	}

	challenge.Attempts++

	if !security.CodeMatches(code, challenge.CodeHash) {
		if challenge.Attempts >= m.maxAttempts {
			challenge.Status = domain.ChallengeFailed
			if err := m.challenges.Update(ctx, *challenge); err != nil {
				return nil, fmt.Errorf("fail challenge: %w", err)
			}
			m.countOutcome(domain.ChallengeFailed)
			m.logger.Info("step-up challenge failed",
				zap.String("challenge_id", challenge.ID),
				zap.String("session_id", challenge.SessionID),
				zap.Int("attempts", challenge.Attempts))
			return challenge, ErrChallengeAttemptsExceeded
		}
		if err := m.challenges.Update(ctx, *challenge); err != nil {
			return nil, fmt.Errorf("record challenge attempt: %w", err)
		}
		return challenge, ErrInvalidChallengeCode
	}

	session, err := m.registry.Elevate(ctx, challenge.SessionID)
	if err != nil {
		return nil, fmt.Errorf("elevate session: %w", err)
	}

	challenge.Status = domain.ChallengeVerified
	if err := m.challenges.Update(ctx, *challenge); err != nil {
		return nil, fmt.Errorf("verify challenge: %w", err)
	}

	m.countOutcome(domain.ChallengeVerified)

	var until time.Time
	if session.ElevatedUntil != nil {
		until = *session.ElevatedUntil
	}

	if m.events != nil {
		publish := domain.SessionElevatedEvent{
			EventID:       uuid.NewString(),
			SessionID:     session.ID,
			AccountID:     session.AccountID,
			ChallengeID:   challenge.ID,
			Scope:         challenge.Scope,
			ElevatedAt:    m.now(),
			ElevatedUntil: until,
		}
		if err := m.events.PublishSessionElevated(ctx, publish); err != nil {
			m.logger.Warn("publish session elevated failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	m.logger.Info("step-up challenge verified",
		zap.String("challenge_id", challenge.ID),
		zap.String("session_id", challenge.SessionID),
		zap.String("scope", string(challenge.Scope)),
		zap.Time("elevated_until", until))

	return challenge, nil
}

func (m *StepUpManager) countOutcome(status domain.ChallengeStatus) {
	if m.metrics != nil {
		m.metrics.ChallengeOutcomes.WithLabelValues(string(status)).Inc()
	}
}
