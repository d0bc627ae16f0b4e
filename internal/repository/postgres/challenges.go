package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yavuz-tech/helvino/internal/core/domain"
	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/repository"
)

// ChallengeRepository implements port.ChallengeRepository backed by PostgreSQL.
type ChallengeRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.ChallengeRepository = (*ChallengeRepository)(nil)

// NewChallengeRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewChallengeRepository(exec pgExecutor) *ChallengeRepository {
	repo := &ChallengeRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create persists a new challenge row.
func (r *ChallengeRepository) Create(ctx context.Context, challenge domain.StepUpChallenge) error {
	stmt, args, err := r.builder.Insert("trust.step_up_challenges").
		Columns(
			"id",
			"session_id",
			"scope",
			"code_hash",
			"created_at",
			"expires_at",
			"attempts",
			"status",
		).
		Values(
			challenge.ID,
			challenge.SessionID,
			string(challenge.Scope),
			challenge.CodeHash,
			challenge.CreatedAt,
			challenge.ExpiresAt,
			challenge.Attempts,
			string(challenge.Status),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert challenge sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// GetByID fetches a challenge by its identifier.
func (r *ChallengeRepository) GetByID(ctx context.Context, challengeID string) (*domain.StepUpChallenge, error) {
	stmt, args, err := r.builder.
		Select("id", "session_id", "scope", "code_hash", "created_at", "expires_at", "attempts", "status").
		From("trust.step_up_challenges").
		Where(squirrel.Eq{"id": challengeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select challenge sql: %w", err)
	}

	var (
		challenge domain.StepUpChallenge
		scope     string
		status    string
	)
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&challenge.ID,
		&challenge.SessionID,
		&scope,
		&challenge.CodeHash,
		&challenge.CreatedAt,
		&challenge.ExpiresAt,
		&challenge.Attempts,
		&status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}

	challenge.Scope = domain.ChallengeScope(scope)
	challenge.Status = domain.ChallengeStatus(status)
	return &challenge, nil
}

// Update persists the attempts counter and status of an existing challenge.
func (r *ChallengeRepository) Update(ctx context.Context, challenge domain.StepUpChallenge) error {
	stmt, args, err := r.builder.Update("trust.step_up_challenges").
		Set("attempts", challenge.Attempts).
		Set("status", string(challenge.Status)).
		Where(squirrel.Eq{"id": challenge.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update challenge sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
