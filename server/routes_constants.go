package server

// Route path constants
// All gateway routes are defined here to ensure consistency and prevent typos
const (
	// Login entry point, target of every session expiry redirect
	RouteLogin = "/login"

	// Session Routes
	RouteSessionLogin  = "/session/login"
	RouteSessionLogout = "/session/logout"
	RouteSessionMe     = "/session/me"

	// Console Routes
	RouteDashboard = "/dashboard"

	// Backend proxy, everything below is relayed through the API client
	RouteAPIPrefix = "/api"
	RouteAPI       = RouteAPIPrefix + "/"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
