package token

import (
	"time"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
)

// EdgeVerifier is the alternate verification path for network-edge or
// otherwise constrained execution contexts where the full parser stack is
// unwanted. It implements the same cryptographic contract as Service.Verify
// through go-jose, and the two accept each other's tokens interchangeably.
type EdgeVerifier struct {
	accessSecret  []byte
	refreshSecret []byte
	nowFunc       func() time.Time
}

var _ Verifier = (*EdgeVerifier)(nil)

// EdgeOption configures an EdgeVerifier.
type EdgeOption func(*EdgeVerifier)

// WithEdgeNowFunc sets the clock (primarily for testing).
func WithEdgeNowFunc(now func() time.Time) EdgeOption {
	return func(v *EdgeVerifier) {
		v.nowFunc = now
	}
}

// NewEdgeVerifier creates an EdgeVerifier over the same secrets the issuing
// Service uses.
func NewEdgeVerifier(accessSecret, refreshSecret []byte, options ...EdgeOption) *EdgeVerifier {
	v := &EdgeVerifier{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Verify checks raw under the given kind's secret. Failure modes collapse
// to ErrInvalidToken exactly as in Service.Verify.
func (v *EdgeVerifier) Verify(raw string, kind Kind) (*Claims, error) {
	var secret []byte
	switch kind {
	case KindAccess:
		secret = v.accessSecret
	case KindRefresh:
		secret = v.refreshSecret
	default:
		return nil, ErrInvalidToken
	}

	parsed, err := josejwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if err := parsed.Claims(secret, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !v.nowFunc().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
