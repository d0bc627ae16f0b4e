package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/repository"
)

// DeviceHistoryRepository implements port.DeviceHistoryRepository backed by PostgreSQL.
type DeviceHistoryRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.DeviceHistoryRepository = (*DeviceHistoryRepository)(nil)

// NewDeviceHistoryRepository constructs a repository backed by any executor
// that satisfies pgExecutor.
func NewDeviceHistoryRepository(exec pgExecutor) *DeviceHistoryRepository {
	repo := &DeviceHistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Lookup fetches the device record for an account/fingerprint pair.
func (r *DeviceHistoryRepository) Lookup(ctx context.Context, accountID, fingerprint string) (*domain.DeviceRecord, error) {
	stmt, args, err := r.builder.
		Select("account_id", "fingerprint", "first_seen_at", "last_seen_at", "countries").
		From("trust.device_history").
		Where(squirrel.Eq{"account_id": accountID, "fingerprint": fingerprint}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select device history sql: %w", err)
	}

	var (
		record    domain.DeviceRecord
		countries []string
	)
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&record.AccountID,
		&record.Fingerprint,
		&record.FirstSeenAt,
		&record.LastSeenAt,
		&countries,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan device history: %w", err)
	}

	record.KnownCountries = countries
	return &record, nil
}

// RecordSeen upserts the device sighting. The countries array keeps the most
// recently seen country first; an empty country leaves the array untouched.
// The statement is a single upsert so concurrent logins from the same device
// cannot lose sightings.
func (r *DeviceHistoryRepository) RecordSeen(ctx context.Context, accountID, fingerprint, country string, at time.Time) error {
	country = strings.ToUpper(strings.TrimSpace(country))

	stmt := `
        INSERT INTO trust.device_history (account_id, fingerprint, first_seen_at, last_seen_at, countries)
        VALUES ($1, $2, $3, $3,
                CASE WHEN $4::text = '' THEN '{}'::text[] ELSE ARRAY[$4::text] END)
        ON CONFLICT (account_id, fingerprint) DO UPDATE
           SET last_seen_at = EXCLUDED.last_seen_at,
               countries = CASE
                   WHEN $4::text = '' THEN trust.device_history.countries
                   ELSE array_prepend($4::text, array_remove(trust.device_history.countries, $4::text))
               END
    `

	if _, err := r.exec.Exec(ctx, stmt, accountID, fingerprint, at.UTC(), country); err != nil {
		return fmt.Errorf("record device sighting: %w", err)
	}
	return nil
}
