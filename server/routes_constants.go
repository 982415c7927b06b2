package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session API
	RouteAPICSRF    = "/api/auth/csrf"
	RouteAPISession = "/api/auth/session"
	RouteAPIMe      = "/api/me"

	// Protected pages
	RouteHome      = "/"
	RouteReports   = "/reports"
	RouteDashboard = "/dashboard"

	// Operational
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/*"
)
