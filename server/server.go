// Package server exposes the HTTP surface: the auth endpoints, the
// middleware gates, and the route table.
package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/finledger/auth-server/auth"
	"github.com/finledger/auth-server/internal/config"
	"github.com/finledger/auth-server/store"
	"github.com/finledger/auth-server/token"
)

type Server struct {
	mux      *http.ServeMux
	routes   []string
	config   *config.Config
	registry *store.Registry
	tokens   *token.Service
	gate     token.Verifier
	log      zerolog.Logger
}

// New builds the server and registers its routes. gate is the verifier used
// by the cookie page gate; passing the token service itself is fine, an
// EdgeVerifier keeps the gate on the minimal verification profile.
func New(cfg *config.Config, registry *store.Registry, tokens *token.Service, gate token.Verifier, log zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] nil config")
	}
	if registry == nil {
		return nil, errors.New("[server.New] nil registry")
	}
	if tokens == nil {
		return nil, errors.New("[server.New] nil token service")
	}
	if gate == nil {
		gate = tokens
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		registry: registry,
		tokens:   tokens,
		gate:     gate,
		log:      log,
	}
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// APIMiddleware is the base middleware set for JSON API routes, with any
// route-specific middleware appended after it.
func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	base := []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.TenantMiddleware,
	}
	return append(base, mw...)
}

// PageMiddleware is the middleware set for browser page routes.
func (s *Server) PageMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	base := []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.PageGate(),
	}
	return append(base, mw...)
}

// authFor resolves the request's tenant and builds an auth service bound to
// that tenant's user repository.
func (s *Server) authFor(r *http.Request) (*auth.Service, error) {
	tenantID, err := s.registry.TenantID(r.Context())
	if err != nil {
		return nil, errors.Wrap(err, "[Server authFor]")
	}

	client, err := s.registry.Client(r.Context(), tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "[Server authFor]")
	}

	return auth.New(client.Users, s.tokens)
}

func (s *Server) logRoutes() {
	if s.config.IsProduction() {
		return
	}
	for _, route := range s.routes {
		s.log.Debug().Str("route", route).Msg("registered")
	}
}
