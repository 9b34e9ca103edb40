package server

import (
	"github.com/HARD953/distribut-sub001/users"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHintHandler(), s.APIMiddleware()...))

	// SESSION
	s.RegisterRouteHandler("POST "+RouteSessionLogin, ChainMiddleware(s.SessionLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionLogout, ChainMiddleware(s.SessionLogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSessionMe, ChainMiddleware(s.SessionMeHandler(), s.APIMiddleware(s.RequireSession())...))

	// CONSOLE
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.APIMiddleware(s.RequireSession(), s.RequireCapability(users.CapDashboard))...))

	// Backend proxy, capability checked per resource path
	s.RegisterRouteHandler(RouteAPI, ChainMiddleware(s.ProxyHandler(), s.APIMiddleware(s.RequireSession(), s.RequirePathCapability())...))

	// OPERATIONS
	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(s.MetricsHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
}
