package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finledger/auth-server/auth"
	"github.com/finledger/auth-server/token"
	"github.com/finledger/auth-server/users"
	fakeuserrepo "github.com/finledger/auth-server/users/repofake"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "ValidPass1"
	testName     = "John Doe"
)

// testFixture holds the service under test plus its fakes. The clock is
// mutable so successive token issues never collide on the same issued-at
// second (identical claims would produce identical tokens).
type testFixture struct {
	userRepo *fakeuserrepo.FakeUserRepo
	tokens   *token.Service
	service  *auth.Service
	now      time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		now:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	tokens, err := token.New(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		token.WithNowFunc(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.tokens = tokens

	service, err := auth.New(f.userRepo, tokens,
		auth.WithNowFunc(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.service = service

	return f
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *testFixture) register(t *testing.T) *auth.Session {
	t.Helper()
	session, err := f.service.Register(context.Background(), testEmail, testPassword, testName)
	require.NoError(t, err)
	return session
}

func TestNew(t *testing.T) {
	f := setupTestFixture(t)

	_, err := auth.New(nil, f.tokens)
	require.Error(t, err)

	_, err = auth.New(f.userRepo, nil)
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	t.Run("success issues a working session", func(t *testing.T) {
		f := setupTestFixture(t)

		session := f.register(t)
		require.NotEmpty(t, session.AccessToken)
		require.NotEmpty(t, session.RefreshToken)
		require.Equal(t, testEmail, session.User.Email)
		require.Equal(t, testName, session.User.Name)
		require.True(t, session.User.Active)

		claims, err := f.tokens.Verify(session.AccessToken, token.KindAccess)
		require.NoError(t, err)
		require.Equal(t, session.User.ID, claims.UserID)
		require.Equal(t, testEmail, claims.Email)

		stored, err := f.userRepo.GetByID(context.Background(), session.User.ID)
		require.NoError(t, err)
		require.Equal(t, session.RefreshToken, stored.RefreshToken)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Register(context.Background(), "not-an-email", testPassword, testName)
		require.ErrorIs(t, err, auth.ErrInvalidEmail)
	})

	t.Run("weak password carries the reason", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Register(context.Background(), testEmail, "short1A", testName)
		require.ErrorIs(t, err, auth.ErrWeakPassword)
		require.Contains(t, err.Error(), "at least 8 characters")

		_, err = f.service.Register(context.Background(), testEmail, "alllowercase1", testName)
		require.ErrorIs(t, err, auth.ErrWeakPassword)
		require.Contains(t, err.Error(), "uppercase")
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t)

		_, err := f.service.Register(context.Background(), testEmail, testPassword, "Someone Else")
		require.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestLogin(t *testing.T) {
	t.Run("success rotates the refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		registered := f.register(t)

		f.advance(time.Minute)
		session, err := f.service.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		require.NotEqual(t, registered.RefreshToken, session.RefreshToken)

		stored, err := f.userRepo.GetByID(context.Background(), session.User.ID)
		require.NoError(t, err)
		require.Equal(t, session.RefreshToken, stored.RefreshToken)
		require.NotNil(t, stored.LastLoginAt)
		require.Equal(t, f.now, *stored.LastLoginAt)
	})

	t.Run("unknown email and wrong password fail identically", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t)

		_, errUnknown := f.service.Login(context.Background(), "nobody@example.com", testPassword)
		_, errWrongPass := f.service.Login(context.Background(), testEmail, "WrongPass1")

		require.ErrorIs(t, errUnknown, auth.ErrInvalidCredentials)
		require.ErrorIs(t, errWrongPass, auth.ErrInvalidCredentials)
		require.Equal(t, errUnknown.Error(), errWrongPass.Error())
	})

	t.Run("inactive account", func(t *testing.T) {
		f := setupTestFixture(t)

		hash, err := users.HashPassword(testPassword)
		require.NoError(t, err)
		require.NoError(t, f.userRepo.Create(context.Background(), &users.User{
			ID:           "inactive-user",
			Email:        testEmail,
			PasswordHash: hash,
			Active:       false,
		}))

		_, err = f.service.Login(context.Background(), testEmail, testPassword)
		require.ErrorIs(t, err, auth.ErrAccountInactive)
	})

	t.Run("password never set", func(t *testing.T) {
		f := setupTestFixture(t)

		require.NoError(t, f.userRepo.Create(context.Background(), &users.User{
			ID:     "passwordless-user",
			Email:  testEmail,
			Active: true,
		}))

		_, err := f.service.Login(context.Background(), testEmail, testPassword)
		require.ErrorIs(t, err, auth.ErrPasswordNotSet)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("success rotates and the old token dies", func(t *testing.T) {
		f := setupTestFixture(t)
		registered := f.register(t)

		f.advance(time.Minute)
		refreshed, err := f.service.Refresh(context.Background(), registered.User.ID, registered.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

		// The presented token was consumed by the rotation.
		f.advance(time.Minute)
		_, err = f.service.Refresh(context.Background(), registered.User.ID, registered.RefreshToken)
		require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

		// The new one still works.
		_, err = f.service.Refresh(context.Background(), registered.User.ID, refreshed.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Refresh(context.Background(), "no-such-user", "whatever")
		require.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("mismatched token", func(t *testing.T) {
		f := setupTestFixture(t)
		registered := f.register(t)

		_, err := f.service.Refresh(context.Background(), registered.User.ID, "some-other-token")
		require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	})

	t.Run("logged-out user has no token to refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		registered := f.register(t)

		require.NoError(t, f.service.Logout(context.Background(), registered.User.ID))

		_, err := f.service.Refresh(context.Background(), registered.User.ID, registered.RefreshToken)
		require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	})
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)

	require.NoError(t, f.service.Logout(context.Background(), registered.User.ID))

	stored, err := f.userRepo.GetByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)

	// Logout of an already logged-out user is a no-op.
	require.NoError(t, f.service.Logout(context.Background(), registered.User.ID))
}

func TestUserByID(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)

	profile, err := f.service.UserByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	require.Equal(t, testEmail, profile.Email)

	_, err = f.service.UserByID(context.Background(), "no-such-user")
	require.ErrorIs(t, err, auth.ErrUserNotFound)
}
