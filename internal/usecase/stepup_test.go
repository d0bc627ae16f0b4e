package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/infra/security"
)

type stepUpHarness struct {
	manager    *StepUpManager
	registry   *SessionRegistry
	repo       *fakeSessionRepo
	challenges *fakeChallengeRepo
	publisher  *fakePublisher
	now        *time.Time
}

func newStepUpHarness(t *testing.T) *stepUpHarness {
	t.Helper()

	base := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	now := base

	repo := newFakeSessionRepo()
	publisher := &fakePublisher{}
	registry := NewSessionRegistry(repo, nil, nil, publisher, zaptest.NewLogger(t))
	registry.WithClock(func() time.Time { return now })
	registry.WithElevationDuration(15 * time.Minute)

	challenges := newFakeChallengeRepo()
	manager := NewStepUpManager(challenges, registry, publisher, zaptest.NewLogger(t))
	manager.WithClock(func() time.Time { return now })
	manager.WithPolicy(10*time.Minute, 5, 6)

	return &stepUpHarness{
		manager:    manager,
		registry:   registry,
		repo:       repo,
		challenges: challenges,
		publisher:  publisher,
		now:        &now,
	}
}

func (h *stepUpHarness) issue(t *testing.T) (*domain.StepUpChallenge, string, *domain.Session) {
	t.Helper()
	session := mustCreate(t, h.registry, "acct-1", "fp-1", "203.0.113.10", "TR")
	challenge, code, err := h.manager.Issue(context.Background(), session.ID, domain.ChallengeScopePortal)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return challenge, code, session
}

func TestIssueCreatesPendingChallenge(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, session := h.issue(t)

	if challenge.Status != domain.ChallengePending {
		t.Fatalf("status = %s, want pending", challenge.Status)
	}
	if challenge.SessionID != session.ID {
		t.Fatalf("session id = %s, want %s", challenge.SessionID, session.ID)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	if challenge.CodeHash == code {
		t.Fatal("plaintext code must not be stored")
	}
	if challenge.CodeHash != security.HashCode(code) {
		t.Fatal("stored hash does not match the issued code")
	}
	want := h.now.Add(10 * time.Minute)
	if !challenge.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", challenge.ExpiresAt, want)
	}
}

func TestIssueRejectsInvalidScope(t *testing.T) {
	h := newStepUpHarness(t)
	session := mustCreate(t, h.registry, "acct-1", "fp-1", "203.0.113.10", "TR")

	if _, _, err := h.manager.Issue(context.Background(), session.ID, domain.ChallengeScope("backoffice")); !errors.Is(err, ErrInvalidChallengeScope) {
		t.Fatalf("Issue invalid scope = %v, want ErrInvalidChallengeScope", err)
	}
}

func TestIssueRejectsRevokedSession(t *testing.T) {
	h := newStepUpHarness(t)
	session := mustCreate(t, h.registry, "acct-1", "fp-1", "203.0.113.10", "TR")

	if _, err := h.registry.Revoke(context.Background(), session.ID, domain.RevokeReasonLogout); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := h.manager.Issue(context.Background(), session.ID, domain.ChallengeScopeAdmin); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Issue on revoked session = %v, want ErrSessionNotFound", err)
	}
}

func TestVerifyCorrectCodeElevatesSession(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, session := h.issue(t)

	verified, err := h.manager.Verify(context.Background(), challenge.ID, code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.Status != domain.ChallengeVerified {
		t.Fatalf("status = %s, want verified", verified.Status)
	}

	elevated, err := h.registry.IsElevated(context.Background(), session.ID)
	if err != nil || !elevated {
		t.Fatalf("IsElevated = (%v, %v), want true", elevated, err)
	}

	stored, err := h.registry.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	want := h.now.Add(15 * time.Minute)
	if stored.ElevatedUntil == nil || !stored.ElevatedUntil.Equal(want) {
		t.Fatalf("elevated until = %v, want %v", stored.ElevatedUntil, want)
	}

	if len(h.publisher.elevated) != 1 {
		t.Fatalf("elevation events = %d, want 1", len(h.publisher.elevated))
	}
}

func TestVerifyWrongCodeConsumesAttempt(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, _ := h.issue(t)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	updated, err := h.manager.Verify(context.Background(), challenge.ID, wrong)
	if !errors.Is(err, ErrInvalidChallengeCode) {
		t.Fatalf("Verify wrong code = %v, want ErrInvalidChallengeCode", err)
	}
	if updated.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", updated.Attempts)
	}
	if updated.Status != domain.ChallengePending {
		t.Fatalf("status = %s, want still pending", updated.Status)
	}

	// The right code still works while attempts remain.
	verified, err := h.manager.Verify(context.Background(), challenge.ID, code)
	if err != nil {
		t.Fatalf("Verify correct code: %v", err)
	}
	if verified.Status != domain.ChallengeVerified || verified.Attempts != 2 {
		t.Fatalf("status=%s attempts=%d, want verified with 2 attempts", verified.Status, verified.Attempts)
	}
}

func TestVerifyAttemptBudgetExhaustion(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, session := h.issue(t)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	for i := 1; i <= 4; i++ {
		if _, err := h.manager.Verify(context.Background(), challenge.ID, wrong); !errors.Is(err, ErrInvalidChallengeCode) {
			t.Fatalf("attempt %d = %v, want ErrInvalidChallengeCode", i, err)
		}
	}

	// Fifth wrong submission spends the budget and fails the challenge.
	failed, err := h.manager.Verify(context.Background(), challenge.ID, wrong)
	if !errors.Is(err, ErrChallengeAttemptsExceeded) {
		t.Fatalf("fifth attempt = %v, want ErrChallengeAttemptsExceeded", err)
	}
	if failed.Status != domain.ChallengeFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}

	// The challenge is terminal now, even for the correct code.
	if _, err := h.manager.Verify(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeNotPending) {
		t.Fatalf("post-failure verify = %v, want ErrChallengeNotPending", err)
	}

	elevated, err := h.registry.IsElevated(context.Background(), session.ID)
	if err != nil || elevated {
		t.Fatalf("IsElevated = (%v, %v), want false after failure", elevated, err)
	}
}

func TestVerifyLazyExpiry(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, _ := h.issue(t)

	*h.now = h.now.Add(10*time.Minute + time.Second)

	expired, err := h.manager.Verify(context.Background(), challenge.ID, code)
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("Verify after deadline = %v, want ErrChallengeExpired", err)
	}
	if expired.Status != domain.ChallengeExpired {
		t.Fatalf("status = %s, want expired", expired.Status)
	}

	// The first touch after the deadline transitioned it; later touches see a
	// terminal challenge.
	if _, err := h.manager.Verify(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeNotPending) {
		t.Fatalf("second verify = %v, want ErrChallengeNotPending", err)
	}
}

func TestVerifyAtExactDeadlineIsExpired(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, _ := h.issue(t)

	*h.now = challenge.ExpiresAt

	if _, err := h.manager.Verify(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("Verify at deadline = %v, want ErrChallengeExpired", err)
	}
}

func TestVerifyUnknownChallenge(t *testing.T) {
	h := newStepUpHarness(t)
	if _, err := h.manager.Verify(context.Background(), "missing", "123456"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("Verify unknown = %v, want ErrChallengeNotFound", err)
	}
}

func TestVerifiedChallengeIsSingleUse(t *testing.T) {
	h := newStepUpHarness(t)
	challenge, code, _ := h.issue(t)

	if _, err := h.manager.Verify(context.Background(), challenge.ID, code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := h.manager.Verify(context.Background(), challenge.ID, code); !errors.Is(err, ErrChallengeNotPending) {
		t.Fatalf("replay verify = %v, want ErrChallengeNotPending", err)
	}
}
