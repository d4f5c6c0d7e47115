// Package token issues and verifies the signed access and refresh tokens
// that make up a session. Both kinds are HMAC-signed JWTs carrying the user
// id, email, and a kind discriminator; access and refresh tokens are signed
// with distinct secrets so compromising one cannot forge the other.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Kind discriminates access from refresh tokens. A token only verifies
// under the kind it was issued for.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const (
	// DefaultAccessExpiry is the access-token lifetime when not configured.
	DefaultAccessExpiry = 15 * time.Minute
	// DefaultRefreshExpiry is the refresh-token lifetime when not configured.
	DefaultRefreshExpiry = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for any verification failure: bad signature,
// malformed structure, wrong kind, or expiry. Callers never learn which.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed token payload. The JSON field names are part of the
// wire contract shared with the edge verifier.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Type   Kind   `json:"type"`
	jwt.RegisteredClaims
}

// Pair bundles the two tokens issued for a session.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Verifier checks a raw token of the given kind and returns its claims.
// Two interchangeable implementations exist: Service (the standard
// server-side path) and EdgeVerifier (a reduced crypto surface for
// constrained execution contexts). Both accept tokens issued by
// Service.Issue.
type Verifier interface {
	Verify(raw string, kind Kind) (*Claims, error)
}

// Service signs and verifies tokens. Sign and verify are stateless CPU
// work; a Service is safe for concurrent use.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
}

var _ Verifier = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithExpiry overrides the per-kind token lifetimes.
func WithExpiry(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessExpiry = access
		}
		if refresh > 0 {
			s.refreshExpiry = refresh
		}
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// New creates a Service. The two secrets must be distinct non-empty byte
// strings; sharing one secret across kinds defeats the kind separation.
func New(accessSecret, refreshSecret []byte, options ...Option) (*Service, error) {
	if len(accessSecret) == 0 {
		return nil, errors.New("[token.New] access secret is required")
	}
	if len(refreshSecret) == 0 {
		return nil, errors.New("[token.New] refresh secret is required")
	}

	s := &Service{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessExpiry:  DefaultAccessExpiry,
		refreshExpiry: DefaultRefreshExpiry,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Issue signs a token of the given kind for the user.
func (s *Service) Issue(userID, email string, kind Kind) (string, error) {
	secret, expiry, err := s.kindParams(kind)
	if err != nil {
		return "", err
	}

	now := s.nowFunc()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Type:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Issue] SignedString")
	}
	return signed, nil
}

// IssuePair issues an access and a refresh token for the user.
func (s *Service) IssuePair(userID, email string) (Pair, error) {
	accessToken, err := s.Issue(userID, email, KindAccess)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, err := s.Issue(userID, email, KindRefresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Verify parses and validates raw under the given kind's secret. Any
// failure (signature, structure, expiry, or kind mismatch) yields
// ErrInvalidToken; the payload of an unverified token is never returned.
func (s *Service) Verify(raw string, kind Kind) (*Claims, error) {
	secret, _, err := s.kindParams(kind)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *Service) kindParams(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return s.accessSecret, s.accessExpiry, nil
	case KindRefresh:
		return s.refreshSecret, s.refreshExpiry, nil
	default:
		return nil, 0, errors.Errorf("[token.kindParams] unknown token kind %q", kind)
	}
}
