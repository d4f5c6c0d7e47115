package server

import (
	"encoding/json"
	"net/http"

	"github.com/finledger/auth-server/token"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         interface{} `json:"user"`
}

// RegisterHandler creates a user in the tenant's schema and returns a fresh
// session. No cookies are set: registration hands back tokens and the client
// decides how to hold them.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("RegisterHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	session, err := svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.log.Debug().Err(err).Str("email", req.Email).Msg("RegisterHandler")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User,
	})
}

// LoginHandler verifies credentials and returns a session, additionally
// setting the auth cookies for browser page routes.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("LoginHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	session, err := svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.log.Debug().Err(err).Str("email", req.Email).Msg("LoginHandler")
		writeDomainError(w, err)
		return
	}

	s.setAuthCookies(w, session.AccessToken, session.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User,
	})
}

// RefreshHandler exchanges a refresh token for a new token pair. The
// presented token must verify as a refresh token and match the single slot
// stored on the user; rotation invalidates the presented token.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Refresh token is required")
		return
	}

	claims, err := s.tokens.Verify(req.RefreshToken, token.KindRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
		return
	}

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("RefreshHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	session, err := svc.Refresh(r.Context(), claims.UserID, req.RefreshToken)
	if err != nil {
		s.log.Debug().Err(err).Str("userID", claims.UserID).Msg("RefreshHandler")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User,
	})
}

// LogoutHandler clears the stored refresh token and expires the auth
// cookies. Requires a valid access token.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ContextKeyUserID).(string)

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("LogoutHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	if err := svc.Logout(r.Context(), userID); err != nil {
		s.log.Error().Err(err).Str("userID", userID).Msg("LogoutHandler")
		writeDomainError(w, err)
		return
	}

	s.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// MeHandler returns the authenticated user's profile.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ContextKeyUserID).(string)

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("MeHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	profile, err := svc.UserByID(r.Context(), userID)
	if err != nil {
		s.log.Debug().Err(err).Str("userID", userID).Msg("MeHandler")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type sessionStatusResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          interface{} `json:"user,omitempty"`
}

// SessionHandler reports whether the caller holds a valid access token.
// It sits behind OptionalAuth: anonymous callers get {authenticated:false}
// rather than a 401, authenticated callers additionally get their profile.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ContextKeyUserID).(string)
	if userID == "" {
		writeJSON(w, http.StatusOK, sessionStatusResponse{Authenticated: false})
		return
	}

	svc, err := s.authFor(r)
	if err != nil {
		s.log.Error().Err(err).Msg("SessionHandler resolve tenant")
		writeDomainError(w, err)
		return
	}

	profile, err := svc.UserByID(r.Context(), userID)
	if err != nil {
		// A token for a user row that since vanished still counts as no
		// session, not an error.
		s.log.Debug().Err(err).Str("userID", userID).Msg("SessionHandler")
		writeJSON(w, http.StatusOK, sessionStatusResponse{Authenticated: false})
		return
	}

	writeJSON(w, http.StatusOK, sessionStatusResponse{Authenticated: true, User: profile})
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// DashboardHandler is a minimal authenticated page sitting behind the page
// gate; it stands in for the application the gate protects.
func (s *Server) DashboardHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>Dashboard</title></head><body><h1>Dashboard</h1></body></html>"))
}

// LoginPageHandler is the gate's redirect target. It is on the public-path
// allowlist, so the gate passes it through without a token.
func (s *Server) LoginPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>Login</title></head><body><h1>Login</h1></body></html>"))
}
