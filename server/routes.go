package server

// Route patterns. Auth endpoints live under /api/auth to mirror the
// client-facing URL scheme.
const (
	RouteRegister = "/api/auth/register"
	RouteLogin    = "/api/auth/login"
	RouteRefresh  = "/api/auth/refresh"
	RouteLogout   = "/api/auth/logout"
	RouteMe       = "/api/auth/me"
	RouteSession  = "/api/auth/session"

	RouteTenants = "/api/tenants"

	RouteHealthz   = "/healthz"
	RouteDashboard = "/dashboard"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler, s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler, s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler, s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.SessionHandler, s.APIMiddleware(s.OptionalAuth())...))

	s.RegisterRouteFunc("GET "+RouteTenants, ChainMiddleware(s.TenantsListHandler, s.APIMiddleware(s.RequireAuth())...))

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler)
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler, s.PageMiddleware()...))
	s.RegisterRouteFunc("GET "+s.config.LoginPath, ChainMiddleware(s.LoginPageHandler, s.PageMiddleware()...))
}
