package server

import (
	"net/http"

	"github.com/finledger/auth-server/store"
)

// ChainMiddleware wraps routeFunction with mw applied in declaration order
// (the first listed middleware runs first).
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// LoggingMiddleware logs each request with method and path.
func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request")
		next(w, r)
	}
}

// RecoverMiddleware converts handler panics into a 500 instead of tearing
// down the connection.
func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panic recovered")
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}
		}()
		next(w, r)
	}
}

// TenantMiddleware reads the tenant identity from the request header and
// threads it through the context. Requests without the header fall back to
// the registry's configured development default, if enabled, at resolution
// time.
func (s *Server) TenantMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tenantID := r.Header.Get(tenantHeader); tenantID != "" {
			r = r.WithContext(store.WithTenantID(r.Context(), tenantID))
		}
		next(w, r)
	}
}
