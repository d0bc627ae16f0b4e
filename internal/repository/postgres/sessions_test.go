package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/repository"
)

func newSessionMock(t *testing.T) (pgxmock.PgxPoolIface, *SessionRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewSessionRepository(mock)
}

func TestSessionRepository_Create(t *testing.T) {
	mock, repo := newSessionMock(t)

	createdAt := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	deviceName := "MacBook Pro"
	session := domain.Session{
		ID:                "session-1",
		AccountID:         "acct-1",
		DeviceFingerprint: "fp-1",
		DeviceName:        &deviceName,
		IP:                "203.0.113.10",
		Country:           "TR",
		TrustLevel:        domain.TrustStandard,
		CreatedAt:         createdAt,
		LastSeen:          createdAt,
	}

	mock.ExpectExec(`INSERT INTO trust\.sessions`).
		WithArgs(
			session.ID,
			session.AccountID,
			session.DeviceFingerprint,
			deviceName,
			session.IP,
			session.Country,
			string(domain.TrustStandard),
			nil,
			session.CreatedAt,
			session.LastSeen,
			nil,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetByID(t *testing.T) {
	mock, repo := newSessionMock(t)

	createdAt := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	elevatedUntil := createdAt.Add(15 * time.Minute)

	rows := pgxmock.NewRows([]string{
		"id", "account_id", "device_fingerprint", "device_name", "ip", "country",
		"trust_level", "elevated_until", "created_at", "last_seen", "revoked_at", "revoke_reason",
	}).AddRow(
		"session-1", "acct-1", "fp-1", "MacBook Pro", "203.0.113.10", "TR",
		"elevated", elevatedUntil, createdAt, createdAt, nil, nil,
	)

	mock.ExpectQuery(`SELECT .+ FROM trust\.sessions`).
		WithArgs("session-1").
		WillReturnRows(rows)

	session, err := repo.GetByID(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if session.TrustLevel != domain.TrustElevated {
		t.Fatalf("trust level = %s, want elevated", session.TrustLevel)
	}
	if session.ElevatedUntil == nil || !session.ElevatedUntil.Equal(elevatedUntil) {
		t.Fatalf("elevated until = %v, want %v", session.ElevatedUntil, elevatedUntil)
	}
	if session.DeviceName == nil || *session.DeviceName != "MacBook Pro" {
		t.Fatalf("device name = %v", session.DeviceName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetByIDNotFound(t *testing.T) {
	mock, repo := newSessionMock(t)

	mock.ExpectQuery(`SELECT .+ FROM trust\.sessions`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "device_fingerprint", "device_name", "ip", "country",
			"trust_level", "elevated_until", "created_at", "last_seen", "revoked_at", "revoke_reason",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByID missing = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_ListActiveByAccount(t *testing.T) {
	mock, repo := newSessionMock(t)

	createdAt := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "account_id", "device_fingerprint", "device_name", "ip", "country",
		"trust_level", "elevated_until", "created_at", "last_seen", "revoked_at", "revoke_reason",
	}).AddRow(
		"session-2", "acct-1", "fp-2", nil, "203.0.113.11", "TR",
		"standard", nil, createdAt.Add(time.Minute), createdAt.Add(time.Minute), nil, nil,
	).AddRow(
		"session-1", "acct-1", "fp-1", nil, "203.0.113.10", "TR",
		"standard", nil, createdAt, createdAt, nil, nil,
	)

	mock.ExpectQuery(`SELECT .+ FROM trust\.sessions`).
		WithArgs("acct-1").
		WillReturnRows(rows)

	sessions, err := repo.ListActiveByAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("ListActiveByAccount returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "session-2" {
		t.Fatalf("first session = %s, want most recent", sessions[0].ID)
	}
}

func TestSessionRepository_Touch(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 12, 30, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("session-1", at, "198.51.100.7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Touch(context.Background(), "session-1", at, "198.51.100.7"); err != nil {
		t.Fatalf("Touch returned error: %v", err)
	}
}

func TestSessionRepository_TouchMissing(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 12, 30, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("missing", at, "198.51.100.7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Touch(context.Background(), "missing", at, "198.51.100.7"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Touch missing = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_Revoke(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("session-1", at, domain.RevokeReasonLimitExceeded).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Revoke(context.Background(), "session-1", domain.RevokeReasonLimitExceeded, at); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
}

func TestSessionRepository_RevokeAlreadyRevoked(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("session-1", at, domain.RevokeReasonLogout).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("session-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	// An existing but already revoked row is not an error.
	if err := repo.Revoke(context.Background(), "session-1", domain.RevokeReasonLogout, at); err != nil {
		t.Fatalf("Revoke on revoked session returned error: %v", err)
	}
}

func TestSessionRepository_RevokeMissing(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("missing", at, domain.RevokeReasonLogout).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	if err := repo.Revoke(context.Background(), "missing", domain.RevokeReasonLogout, at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Revoke missing = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_RevokeAllForAccount(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("acct-1", at, domain.RevokeReasonSecurityLock).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.RevokeAllForAccount(context.Background(), "acct-1", domain.RevokeReasonSecurityLock, at)
	if err != nil {
		t.Fatalf("RevokeAllForAccount returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestSessionRepository_SetTrust(t *testing.T) {
	mock, repo := newSessionMock(t)

	until := time.Date(2025, 10, 19, 13, 15, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE trust\.sessions`).
		WithArgs("session-1", string(domain.TrustElevated), until).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetTrust(context.Background(), "session-1", domain.TrustElevated, &until); err != nil {
		t.Fatalf("SetTrust returned error: %v", err)
	}
}

func TestSessionRepository_StoreEvent(t *testing.T) {
	mock, repo := newSessionMock(t)

	at := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC)
	ip := "203.0.113.10"
	event := domain.SessionEvent{
		ID:        "event-1",
		SessionID: "session-1",
		Kind:      "session.revoked",
		At:        at,
		IP:        &ip,
		Details:   map[string]any{"reason": "limit_exceeded"},
	}

	mock.ExpectExec(`INSERT INTO trust\.session_events`).
		WithArgs(
			event.ID,
			event.SessionID,
			event.Kind,
			event.At,
			ip,
			[]byte(`{"reason":"limit_exceeded"}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.StoreEvent(context.Background(), event); err != nil {
		t.Fatalf("StoreEvent returned error: %v", err)
	}
}
