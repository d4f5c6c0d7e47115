package auth

import "errors"

// Domain errors raised by the Service. The HTTP boundary translates these
// into status codes and {error, message} bodies; nothing else about a
// failure is ever surfaced to the client.
var (
	// Validation failures (400).
	ErrInvalidEmail = errors.New("invalid email format")
	ErrWeakPassword = errors.New("password is not strong enough")

	// ErrEmailTaken is a registration conflict, reported as 400 to match
	// the other registration failures.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials deliberately reads identically whether the email
	// is unknown or the password is wrong, to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrAccountInactive = errors.New("user account is inactive")
	// ErrPasswordNotSet means the account has no password hash and cannot
	// log in with a password.
	ErrPasswordNotSet = errors.New("user password not set")

	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRefreshToken covers both a token that fails the stored-token
	// comparison and one that lost a rotation race.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrLogoutFailed is raised only for an underlying data-store error.
	ErrLogoutFailed = errors.New("logout failed")
)
