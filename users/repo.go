package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStaleRefreshToken is returned by RotateRefreshToken when the stored
	// token no longer matches the expected one (a concurrent rotation won).
	ErrStaleRefreshToken = errors.New("stored refresh token does not match")
)

// Repo is the tenant-scoped user store. All methods honour ctx cancellation
// so a stalled store never blocks the caller indefinitely.
type Repo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetRefreshToken overwrites the user's single refresh-token slot.
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error

	// RotateRefreshToken replaces current with next only if current is still
	// the stored token (compare-and-swap). Returns ErrStaleRefreshToken when
	// the comparison fails.
	RotateRefreshToken(ctx context.Context, userID, current, next string) error

	// RecordLogin stores the new refresh token and stamps the login time in
	// one write.
	RecordLogin(ctx context.Context, userID, refreshToken string, at time.Time) error

	// ClearRefreshToken empties the refresh-token slot unconditionally.
	ClearRefreshToken(ctx context.Context, userID string) error
}
