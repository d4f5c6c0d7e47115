// Package postgres implements users.Repo on top of a pgx connection pool.
// The pool is expected to be scoped to a single tenant's schema; the SQL
// here never qualifies table names across schemas.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finledger/auth-server/users"
)

const usersTable = "users"

// uniqueViolation is the Postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

var _ users.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *users.User) error {
	const op = "postgres.UserRepo.Create"

	query := fmt.Sprintf(`INSERT INTO %s
		(id, email, name, password_hash, is_active, refresh_token, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8)`, usersTable)

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.Active, user.RefreshToken, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return users.ErrDuplicateEmail
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	const op = "postgres.UserRepo.GetByID"

	query := fmt.Sprintf(`SELECT id, email, COALESCE(name, ''), COALESCE(password_hash, ''),
		is_active, COALESCE(refresh_token, ''), created_at, updated_at, last_login_at
		FROM %s WHERE id = $1`, usersTable)

	return r.scanUser(r.db.QueryRow(ctx, query, id), op)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	const op = "postgres.UserRepo.GetByEmail"

	query := fmt.Sprintf(`SELECT id, email, COALESCE(name, ''), COALESCE(password_hash, ''),
		is_active, COALESCE(refresh_token, ''), created_at, updated_at, last_login_at
		FROM %s WHERE email = $1`, usersTable)

	return r.scanUser(r.db.QueryRow(ctx, query, email), op)
}

func (r *UserRepo) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	const op = "postgres.UserRepo.SetRefreshToken"

	query := fmt.Sprintf(`UPDATE %s
		SET refresh_token = NULLIF($1, ''), updated_at = now()
		WHERE id = $2`, usersTable)

	tag, err := r.db.Exec(ctx, query, refreshToken, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

// RotateRefreshToken is a compare-and-swap: the update only applies while
// current is still the stored token, so two refreshes racing on the same
// token cannot both win.
func (r *UserRepo) RotateRefreshToken(ctx context.Context, userID, current, next string) error {
	const op = "postgres.UserRepo.RotateRefreshToken"

	query := fmt.Sprintf(`UPDATE %s
		SET refresh_token = $1, updated_at = now()
		WHERE id = $2 AND refresh_token = $3`, usersTable)

	tag, err := r.db.Exec(ctx, query, next, userID, current)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrStaleRefreshToken
	}
	return nil
}

func (r *UserRepo) RecordLogin(ctx context.Context, userID, refreshToken string, at time.Time) error {
	const op = "postgres.UserRepo.RecordLogin"

	query := fmt.Sprintf(`UPDATE %s
		SET refresh_token = $1, last_login_at = $2, updated_at = $2
		WHERE id = $3`, usersTable)

	tag, err := r.db.Exec(ctx, query, refreshToken, at, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) ClearRefreshToken(ctx context.Context, userID string) error {
	const op = "postgres.UserRepo.ClearRefreshToken"

	query := fmt.Sprintf(`UPDATE %s
		SET refresh_token = NULL, updated_at = now()
		WHERE id = $1`, usersTable)

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanUser(row pgx.Row, op string) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Active, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}
