package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
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

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sqlStmt, args, err := r.builder.Insert("trust.sessions").
		Columns(
			"id",
			"account_id",
			"device_fingerprint",
			"device_name",
			"ip",
			"country",
			"trust_level",
			"elevated_until",
			"created_at",
			"last_seen",
			"revoked_at",
			"revoke_reason",
		).
		Values(
			session.ID,
			session.AccountID,
			session.DeviceFingerprint,
			optionalString(session.DeviceName),
			session.IP,
			session.Country,
			string(session.TrustLevel),
			optionalTime(session.ElevatedUntil),
			session.CreatedAt,
			session.LastSeen,
			optionalTime(session.RevokedAt),
			optionalString(session.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID fetches a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns()...).
		From("trust.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListActiveByAccount retrieves the non-revoked sessions of an account ordered
// by last activity.
func (r *SessionRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns()...).
		From("trust.sessions").
		Where(squirrel.Eq{"account_id": accountID}).
		Where("revoked_at IS NULL").
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch refreshes last_seen and the caller IP when activity is detected.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time, ip string) error {
	stmt := `
        UPDATE trust.sessions
           SET last_seen = $2,
               ip = CASE WHEN $3::text IS NULL OR $3::text = '' THEN ip ELSE $3::text END
         WHERE id = $1 AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, at.UTC(), ip)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Revoke marks the session as revoked. Already revoked rows are left untouched
// so the original reason and timestamp survive.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string, at time.Time) error {
	stmt := `
        UPDATE trust.sessions
           SET revoked_at = $2,
               revoke_reason = $3
         WHERE id = $1 AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, at.UTC(), reason)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an already revoked one.
		var exists bool
		if err := r.exec.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM trust.sessions WHERE id = $1)", sessionID).Scan(&exists); err != nil {
			return fmt.Errorf("check session existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
	}
	return nil
}

// RevokeAllForAccount revokes every active session owned by the account and
// reports how many rows changed.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID, reason string, at time.Time) (int, error) {
	stmt := `
        UPDATE trust.sessions
           SET revoked_at = $2,
               revoke_reason = $3
         WHERE account_id = $1 AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, accountID, at.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("revoke account sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SetTrust updates the trust level and elevation deadline of a session.
func (r *SessionRepository) SetTrust(ctx context.Context, sessionID string, level domain.TrustLevel, elevatedUntil *time.Time) error {
	stmt := `
        UPDATE trust.sessions
           SET trust_level = $2,
               elevated_until = $3
         WHERE id = $1 AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, string(level), optionalTime(elevatedUntil))
	if err != nil {
		return fmt.Errorf("set session trust: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// StoreEvent persists lifecycle events for auditability.
func (r *SessionRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	details, err := marshalEventDetails(event.Details)
	if err != nil {
		return err
	}

	sqlStmt, args, err := r.builder.Insert("trust.session_events").
		Columns(
			"id",
			"session_id",
			"kind",
			"at",
			"ip",
			"details",
		).
		Values(
			event.ID,
			event.SessionID,
			event.Kind,
			event.At,
			optionalString(event.IP),
			details,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

func sessionColumns() []string {
	return []string{
		"id",
		"account_id",
		"device_fingerprint",
		"device_name",
		"ip",
		"country",
		"trust_level",
		"elevated_until",
		"created_at",
		"last_seen",
		"revoked_at",
		"revoke_reason",
	}
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session       domain.Session
		trustLevel    string
		deviceName    sql.NullString
		elevatedUntil sql.NullTime
		revokedAt     sql.NullTime
		revokeReason  sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.DeviceFingerprint,
		&deviceName,
		&session.IP,
		&session.Country,
		&trustLevel,
		&elevatedUntil,
		&session.CreatedAt,
		&session.LastSeen,
		&revokedAt,
		&revokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.TrustLevel = domain.TrustLevel(trustLevel)
	session.DeviceName = nullableStringPtr(deviceName)
	session.ElevatedUntil = nullableTimePtr(elevatedUntil)
	session.RevokedAt = nullableTimePtr(revokedAt)
	session.RevokeReason = nullableStringPtr(revokeReason)

	return &session, nil
}

func marshalEventDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal session event details: %w", err)
	}
	return payload, nil
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return (*value).UTC()
}

func nullableStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := strings.TrimSpace(value.String)
	if v == "" {
		return nil
	}
	return &v
}

func nullableTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
