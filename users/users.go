package users

import (
	"fmt"
	"regexp"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// emailPattern is a deliberately conservative local@domain.tld shape:
// no whitespace, exactly one "@", at least one "." in the domain part.
// No DNS or MX verification is attempted.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is the identity record stored per tenant. A user carries at most one
// live refresh token; issuing a new one on login or refresh invalidates the
// previous session. An empty PasswordHash means the account cannot log in
// with a password.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `json:"-"` // never serialize
	Active       bool       `json:"active"`
	RefreshToken string     `json:"-"` // single live refresh token, empty when logged out
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Profile is the public projection of a User returned over HTTP.
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Public returns the user's public projection.
func (u *User) Public() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// ValidateEmail reports whether email has a plausible address shape.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
//
// Rules are checked in that order, so the first violated rule is the one
// reported.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// HashPassword hashes a plaintext password with bcrypt. The resulting hash
// string embeds salt and cost, so verification needs no side-channel config.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash reports whether password matches hash. A non-matching
// password is simply false. A malformed hash is also false; callers map it
// to a generic authentication failure.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
