package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes(loginRoute string) {
	// LOGIN
	s.RegisterRouteHandler("GET "+loginRoute, ChainMiddleware(s.LoginPageHandler(), s.NoStoreMiddleware))

	// Session API, outside the gate. Each endpoint enforces its own checks.
	s.RegisterRouteHandler("GET "+RouteAPICSRF, ChainMiddleware(s.CSRFTokenHandler(), s.NoStoreMiddleware))
	s.RegisterRouteHandler("POST "+RouteAPISession, ChainMiddleware(s.CreateSessionHandler(), s.NoStoreMiddleware))
	s.RegisterRouteHandler("DELETE "+RouteAPISession, ChainMiddleware(s.RevokeSessionHandler(), s.NoStoreMiddleware))
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.NoStoreMiddleware, s.guard.API))

	// Protected pages always go through the guard, whatever the gate decided.
	s.RegisterRouteHandler("GET "+RouteHome, s.protected("Home"))
	s.RegisterRouteHandler("GET "+RouteReports, s.protected("Reports"))
	s.RegisterRouteHandler("GET "+RouteDashboard, s.protected("Dashboard"))

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(http.StripPrefix("/static/", FileServerHandler()), s.CacheMiddleware))
}

func (s *Server) protected(title string) http.Handler {
	return ChainMiddleware(s.ProtectedPageHandler(title), s.NoStoreMiddleware, s.guard.Pages)
}
