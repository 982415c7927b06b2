package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/gate"
	"github.com/mbark223/aipromptbuilder-sub002/guard"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
	"github.com/mbark223/aipromptbuilder-sub002/internal/metrics"
	"github.com/mbark223/aipromptbuilder-sub002/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   config.Config
	cookies  cookies.Policy
	sessions *session.Service
	csrf     *csrf.Service
	gate     *gate.Gate
	guard    *guard.Guard
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	loginPage     *template.Template
	protectedPage *template.Template
}

type Option func(*Server)

// WithMetrics records into m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// New assembles the gateway around provider.
func New(config config.Config, provider identity.Provider, options ...Option) (*Server, error) {
	s := &Server{
		env:     config.GetEnv(),
		router:  chi.NewRouter(),
		config:  config,
		cookies: cookies.PolicyFromConfig(config),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.metrics == nil {
		registry := prometheus.NewRegistry()
		s.metrics = metrics.New(registry)
		s.gatherer = registry
	}

	gatePolicy, err := config.GetGatePolicy()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to load gate policy: %w", err)
	}

	s.sessions, err = session.NewService(provider,
		session.WithLifetime(config.GetSessionLifetime()),
		session.WithFreshAuthWindow(config.GetFreshAuthWindow()),
		session.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create session service: %w", err)
	}
	s.csrf = csrf.NewService(s.cookies)
	s.gate = gate.New(gate.PolicyFromConfig(gatePolicy), s.cookies, s.csrf, gate.WithMetrics(s.metrics))
	s.guard = guard.New(s.sessions, s.cookies, gatePolicy.LoginRoute, guard.WithMetrics(s.metrics))

	if s.loginPage, err = ParseTemplate("login.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse login template: %w", err)
	}
	if s.protectedPage, err = ParseTemplate("protected.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse protected template: %w", err)
	}

	s.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.LoggingMiddleware,
		middleware.Recoverer,
		s.FrameSecurityMiddleware,
		s.gate.Middleware,
	)
	s.initRoutes(gatePolicy.LoginRoute)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		s.router.Handle(pattern, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
