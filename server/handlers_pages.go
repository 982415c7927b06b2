package server

import (
	"net/http"

	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/gate"
	"github.com/mbark223/aipromptbuilder-sub002/guard"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	"github.com/mbark223/aipromptbuilder-sub002/redirect"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName        string
	CSRFToken      string
	CSRFHeader     string
	Redirect       string
	IssuerURL      string
	ClientID       string
	SessionRoute   string
	MarkerHeader   string
	MarkerValue    string
	CSRFCookieName string
}

// LoginPageHandler renders the login surface. The gate has already ensured the
// CSRF cookie; the handler issues one itself when mounted without the gate.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := csrf.TokenFromContext(r.Context())
		if !ok {
			var err error
			if token, err = s.csrf.EnsureToken(cookies.NewHTTPJar(w, r)); err != nil {
				log.Err(err).Msg("[LoginPageHandler] failed to issue csrf token")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		data := LoginPageData{
			AppName:        s.config.GetAppName(),
			CSRFToken:      token,
			CSRFHeader:     csrf.HeaderName,
			Redirect:       redirect.Sanitize(r.URL.Query().Get(gate.RedirectParam)),
			IssuerURL:      s.config.GetIssuerURL(),
			ClientID:       s.config.GetClientID(),
			SessionRoute:   RouteAPISession,
			MarkerHeader:   csrf.MarkerHeader,
			MarkerValue:    csrf.MarkerValue,
			CSRFCookieName: s.cookies.CSRFName,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.loginPage.Execute(w, data); err != nil {
			log.Err(err).Msg("[LoginPageHandler] failed to render template")
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	}
}

// ProtectedPageData contains data for rendering a protected page
type ProtectedPageData struct {
	AppName        string
	Title          string
	Principal      *identity.Principal
	SessionRoute   string
	CSRFHeader     string
	CSRFCookieName string
	MarkerHeader   string
	MarkerValue    string
}

// ProtectedPageHandler renders content for the principal placed in the context
// by the guard.
func (s *Server) ProtectedPageHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := guard.PrincipalFromContext(r.Context())
		if !ok {
			// Mounted without the guard; verify here rather than serve content.
			if p, ok = s.guard.RequireUser(w, r); !ok {
				return
			}
		}

		data := ProtectedPageData{
			AppName:        s.config.GetAppName(),
			Title:          title,
			Principal:      p,
			SessionRoute:   RouteAPISession,
			CSRFHeader:     csrf.HeaderName,
			CSRFCookieName: s.cookies.CSRFName,
			MarkerHeader:   csrf.MarkerHeader,
			MarkerValue:    csrf.MarkerValue,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.protectedPage.Execute(w, data); err != nil {
			log.Err(err).Msg("[ProtectedPageHandler] failed to render template")
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	}
}
