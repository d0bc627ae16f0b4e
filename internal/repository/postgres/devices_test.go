package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/yavuz-tech/helvino/internal/repository"
)

func TestDeviceHistoryRepository_Lookup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDeviceHistoryRepository(mock)

	firstSeen := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
	lastSeen := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"account_id", "fingerprint", "first_seen_at", "last_seen_at", "countries"}).
		AddRow("acct-1", "fp-1", firstSeen, lastSeen, []string{"DE", "TR"})

	mock.ExpectQuery(`SELECT .+ FROM trust\.device_history`).
		WithArgs("acct-1", "fp-1").
		WillReturnRows(rows)

	record, err := repo.Lookup(context.Background(), "acct-1", "fp-1")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if record.LastCountry() != "DE" {
		t.Fatalf("last country = %s, want DE", record.LastCountry())
	}
	if !record.HasCountry("tr") {
		t.Fatal("country match should be case-insensitive")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeviceHistoryRepository_LookupUnknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDeviceHistoryRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM trust\.device_history`).
		WithArgs("acct-1", "fp-unknown").
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "fingerprint", "first_seen_at", "last_seen_at", "countries"}))

	if _, err := repo.Lookup(context.Background(), "acct-1", "fp-unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Lookup unknown = %v, want ErrNotFound", err)
	}
}

func TestDeviceHistoryRepository_RecordSeen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDeviceHistoryRepository(mock)

	at := time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO trust\.device_history`).
		WithArgs("acct-1", "fp-1", at, "TR").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.RecordSeen(context.Background(), "acct-1", "fp-1", "tr", at); err != nil {
		t.Fatalf("RecordSeen returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
