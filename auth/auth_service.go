// Package auth orchestrates registration, login, token refresh, and logout
// against a tenant-scoped user store. The only persisted session state is
// the single refresh-token slot on the user row; access tokens are stateless
// and expire on their own.
package auth

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/finledger/auth-server/token"
	"github.com/finledger/auth-server/users"
)

// Session is returned by Register, Login, and Refresh: a fresh token pair
// plus the public projection of the user it belongs to.
type Session struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         users.Profile `json:"user"`
}

// Service wires the credential checks, password hasher, and token service
// around a user store. Construct one per tenant-scoped store handle; the
// struct itself is cheap and stateless.
type Service struct {
	users   users.Repo
	tokens  *token.Service
	nowFunc func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// New creates a Service over the given user store and token service.
func New(userRepo users.Repo, tokens *token.Service, options ...Option) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[auth.New] user repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[auth.New] token service is required")
	}

	s := &Service{
		users:   userRepo,
		tokens:  tokens,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register creates a new active user and logs them straight in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	if !users.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, errors.Wrap(ErrWeakPassword, err.Error())
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !goerrors.Is(err, users.ErrNotFound) {
		return nil, errors.Wrap(err, "[Service.Register] GetByEmail")
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	now := s.nowFunc().UTC()
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if goerrors.Is(err, users.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "[Service.Register] Create")
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] IssuePair")
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] SetRefreshToken")
	}
	user.RefreshToken = pair.RefreshToken

	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Public(),
	}, nil
}

// Login authenticates by email and password, rotates the stored refresh
// token, and stamps the login time. Unknown email and wrong password fail
// identically.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !user.Active {
		return nil, ErrAccountInactive
	}
	if user.PasswordHash == "" {
		return nil, ErrPasswordNotSet
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] IssuePair")
	}

	loginAt := s.nowFunc().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, pair.RefreshToken, loginAt); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] RecordLogin")
	}
	user.RefreshToken = pair.RefreshToken
	user.LastLoginAt = &loginAt

	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Public(),
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must exactly match the one stored on the user row (that match is
// the revocation mechanism, not just a format check). Rotation is a
// compare-and-swap, so of two concurrent refreshes only one wins.
func (s *Service) Refresh(ctx context.Context, userID, refreshToken string) (*Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if goerrors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] IssuePair")
	}

	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if goerrors.Is(err, users.ErrStaleRefreshToken) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, errors.Wrap(err, "[Service.Refresh] RotateRefreshToken")
	}

	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Public(),
	}, nil
}

// Logout clears the stored refresh token unconditionally. It fails only on
// an underlying store error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return errors.Wrap(ErrLogoutFailed, err.Error())
	}
	return nil
}

// UserByID returns the public projection of a user, or ErrUserNotFound.
func (s *Service) UserByID(ctx context.Context, userID string) (*users.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if goerrors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[Service.UserByID] GetByID")
	}
	profile := user.Public()
	return &profile, nil
}
