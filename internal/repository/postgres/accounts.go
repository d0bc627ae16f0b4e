package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/repository"
)

// AccountDirectory implements port.AccountDirectory against the platform
// accounts table. The trust core only reads contact details; account rows are
// owned by the account service.
type AccountDirectory struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AccountDirectory = (*AccountDirectory)(nil)

// NewAccountDirectory constructs a directory backed by any executor that
// satisfies pgExecutor.
func NewAccountDirectory(exec pgExecutor) *AccountDirectory {
	directory := &AccountDirectory{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		directory.pool = pool
	}
	return directory
}

// EmailForAccount resolves the notification address of an account.
func (d *AccountDirectory) EmailForAccount(ctx context.Context, accountID string) (string, error) {
	stmt, args, err := d.builder.
		Select("email").
		From("accounts").
		Where(squirrel.Eq{"id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select account email sql: %w", err)
	}

	var email string
	if err := d.exec.QueryRow(ctx, stmt, args...).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan account email: %w", err)
	}
	return email, nil
}
