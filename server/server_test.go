package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/finledger/auth-server/internal/config"
	"github.com/finledger/auth-server/server"
	"github.com/finledger/auth-server/store"
	"github.com/finledger/auth-server/tenants"
	tenantrepofakes "github.com/finledger/auth-server/tenants/repofakes"
	"github.com/finledger/auth-server/token"
	fakeuserrepo "github.com/finledger/auth-server/users/repofake"
)

const (
	testTenantID = "tenant-1"
	testEmail    = "john.doe@example.com"
	testPassword = "ValidPass1"
)

type testFixture struct {
	server     *server.Server
	userRepo   *fakeuserrepo.FakeUserRepo
	tenantRepo *tenantrepofakes.FakeTenantRepo
	now        time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo:   fakeuserrepo.NewFakeUserRepo(),
		tenantRepo: tenantrepofakes.NewFakeTenantRepo(),
		now:        time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := &config.Config{
		Env:                "development",
		Port:               "8080",
		JWTSecret:          "test-access-secret",
		JWTRefreshSecret:   "test-refresh-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 168 * time.Hour,
		PublicPaths:        []string{"/auth/login", "/auth/register"},
		LoginPath:          "/auth/login",
	}

	tokens, err := token.New(
		[]byte(cfg.JWTSecret),
		[]byte(cfg.JWTRefreshSecret),
		token.WithExpiry(cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry),
		token.WithNowFunc(func() time.Time { return f.now }),
	)
	require.NoError(t, err)

	gate := token.NewEdgeVerifier(
		[]byte(cfg.JWTSecret),
		[]byte(cfg.JWTRefreshSecret),
		token.WithEdgeNowFunc(func() time.Time { return f.now }),
	)

	registry := store.NewRegistry(
		store.Config{AdminURL: "postgres://unused"},
		store.WithAdminClient(store.NewClient("", fakeuserrepo.NewFakeUserRepo(), f.tenantRepo)),
		store.WithClient(testTenantID, store.NewClient(testTenantID, f.userRepo, nil)),
	)
	t.Cleanup(registry.Close)

	srv, err := server.New(cfg, registry, tokens, gate, zerolog.Nop())
	require.NoError(t, err)
	f.server = srv

	return f
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// doJSON performs a request with the tenant header set and the body
// marshalled as JSON.
func (f *testFixture) doJSON(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", testTenantID)
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var session map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func (f *testFixture) registerUser(t *testing.T) map[string]any {
	t.Helper()
	rec := f.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    testEmail,
		"password": testPassword,
		"name":     "John Doe",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeSession(t, rec)
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates a session", func(t *testing.T) {
		f := setupTestFixture(t)

		session := f.registerUser(t)
		require.NotEmpty(t, session["accessToken"])
		require.NotEmpty(t, session["refreshToken"])

		user := session["user"].(map[string]any)
		require.Equal(t, testEmail, user["email"])
	})

	t.Run("missing fields", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{"email": testEmail})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		require.Contains(t, rec.Body.String(), "Email and password are required")
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.registerUser(t)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    testEmail,
			"password": testPassword,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "EMAIL_TAKEN")
	})

	t.Run("missing tenant header", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    testEmail,
			"password": testPassword,
		}, func(r *http.Request) {
			r.Header.Del("X-Tenant-ID")
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "TENANT_REQUIRED")
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("success sets auth cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		f.registerUser(t)
		f.advance(time.Minute)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    testEmail,
			"password": testPassword,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		names := make(map[string]*http.Cookie, len(cookies))
		for _, c := range cookies {
			names[c.Name] = c
		}
		require.Contains(t, names, "accessToken")
		require.Contains(t, names, "refreshToken")
		require.True(t, names["accessToken"].HttpOnly)
		require.False(t, names["accessToken"].Secure, "secure only in production")
	})

	t.Run("wrong password responses are indistinguishable from unknown email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.registerUser(t)

		wrongPass := f.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    testEmail,
			"password": "WrongPass1",
		})
		unknownEmail := f.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "nobody@example.com",
			"password": testPassword,
		})

		require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
		require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
		require.Equal(t, wrongPass.Body.String(), unknownEmail.Body.String())
		require.Contains(t, wrongPass.Body.String(), "Invalid email or password")
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Run("rotates the refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)
		oldRefresh := session["refreshToken"].(string)

		f.advance(time.Minute)
		rec := f.doJSON(t, http.MethodPost, "/api/auth/refresh", map[string]string{
			"refreshToken": oldRefresh,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		refreshed := decodeSession(t, rec)
		require.NotEqual(t, oldRefresh, refreshed["refreshToken"])

		// The consumed token is rejected on replay.
		f.advance(time.Minute)
		rec = f.doJSON(t, http.MethodPost, "/api/auth/refresh", map[string]string{
			"refreshToken": oldRefresh,
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
	})

	t.Run("missing token", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/refresh", map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "Refresh token is required")
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		rec := f.doJSON(t, http.MethodPost, "/api/auth/refresh", map[string]string{
			"refreshToken": session["accessToken"].(string),
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "INVALID_REFRESH_TOKEN")
	})
}

func TestMeEndpoint(t *testing.T) {
	t.Run("returns the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		rec := f.doJSON(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), testEmail)
	})

	t.Run("missing token", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodGet, "/api/auth/me", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Missing authorization token")
	})

	t.Run("expired token", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		f.advance(16 * time.Minute)
		rec := f.doJSON(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	session := f.registerUser(t)

	rec := f.doJSON(t, http.MethodPost, "/api/auth/logout", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		require.Less(t, c.MaxAge, 0, "cookie %s should be expired", c.Name)
	}

	// The refresh token stored before logout is gone.
	f.advance(time.Minute)
	rec = f.doJSON(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refreshToken": session["refreshToken"].(string),
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	t.Run("anonymous caller gets authenticated false", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodGet, "/api/auth/session", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
	})

	t.Run("invalid token is treated as anonymous", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodGet, "/api/auth/session", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
	})

	t.Run("valid token carries the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		rec := f.doJSON(t, http.MethodGet, "/api/auth/session", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var status map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		require.Equal(t, true, status["authenticated"])
		user := status["user"].(map[string]any)
		require.Equal(t, testEmail, user["email"])
	})
}

func TestTenantsListEndpoint(t *testing.T) {
	seedTenants := func(t *testing.T, f *testFixture, ids ...string) {
		t.Helper()
		for _, id := range ids {
			require.NoError(t, f.tenantRepo.Create(context.Background(), &tenants.Tenant{
				ID:         id,
				Name:       "Tenant " + id,
				SchemaName: "schema_" + id,
				Active:     true,
			}))
		}
	}

	t.Run("returns the registry page", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)
		seedTenants(t, f, "alpha", "beta")

		rec := f.doJSON(t, http.MethodGet, "/api/tenants", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 2)
		require.Equal(t, "alpha", list[0]["id"])
		require.Equal(t, "beta", list[1]["id"])
	})

	t.Run("offset and limit page through", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)
		seedTenants(t, f, "alpha", "beta", "gamma")

		rec := f.doJSON(t, http.MethodGet, "/api/tenants?offset=1&limit=1", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		require.Equal(t, "beta", list[0]["id"])
	})

	t.Run("rejects malformed paging", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		rec := f.doJSON(t, http.MethodGet, "/api/tenants?offset=-1", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session["accessToken"].(string))
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("requires auth", func(t *testing.T) {
		f := setupTestFixture(t)

		rec := f.doJSON(t, http.MethodGet, "/api/tenants", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPageGate(t *testing.T) {
	t.Run("anonymous request is redirected to login", func(t *testing.T) {
		f := setupTestFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/auth/login?from=%2Fdashboard", rec.Header().Get("Location"))
	})

	t.Run("invalid cookie redirects identically", func(t *testing.T) {
		f := setupTestFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "garbage"})
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/auth/login?from=%2Fdashboard", rec.Header().Get("Location"))
	})

	t.Run("valid cookie passes", func(t *testing.T) {
		f := setupTestFixture(t)
		session := f.registerUser(t)

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: session["accessToken"].(string)})
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "Dashboard")
	})

	t.Run("public login page passes without a token", func(t *testing.T) {
		f := setupTestFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "Login")
	})

	t.Run("allowlist matches exact and prefix, not lookalikes", func(t *testing.T) {
		f := setupTestFixture(t)

		gated := f.server.PageGate()(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		cases := []struct {
			path string
			code int
		}{
			{"/auth/login", http.StatusOK},          // exact
			{"/auth/login/reset", http.StatusOK},    // prefix with separator
			{"/auth/login-extra", http.StatusFound}, // lookalike is not public
			{"/auth", http.StatusFound},             // parent of a public path is not public
		}
		for _, tc := range cases {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			rec := httptest.NewRecorder()
			gated(rec, req)
			require.Equal(t, tc.code, rec.Code, tc.path)
		}
	})
}

func TestHealthz(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
