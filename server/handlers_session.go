package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/guard"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
	"github.com/mbark223/aipromptbuilder-sub002/redirect"
	"github.com/mbark223/aipromptbuilder-sub002/session"
	"github.com/rs/zerolog/log"
)

const maxSessionBodyBytes = 64 << 10

// createSessionRequest is the POST /api/auth/session body. Both fields must be
// JSON strings when present.
type createSessionRequest struct {
	IDToken  string `json:"idToken"`
	Redirect string `json:"redirect"`
}

// createSessionResponse carries the sanitized redirect and the same target
// escaped for navigation. Clients navigate to Location.
type createSessionResponse struct {
	OK       bool   `json:"ok"`
	Redirect string `json:"redirect"`
	Location string `json:"location"`
}

// CSRFTokenHandler ensures the CSRF cookie and returns its value.
func (s *Server) CSRFTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := s.csrf.EnsureToken(cookies.NewHTTPJar(w, r))
		if err != nil {
			log.Err(err).Msg("[CSRFTokenHandler] failed to issue csrf token")
			writeJSONError(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	}
}

// CreateSessionHandler exchanges an ID token for the session cookie.
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeCreateSession(w, r)
		if err != nil {
			log.Debug().Err(err).Msg("[CreateSessionHandler] malformed body")
			writeJSONError(w, "bad request", http.StatusBadRequest)
			return
		}

		issued, err := s.sessions.CreateSession(r.Context(), session.CreateParams{
			IDToken:    body.IDToken,
			Redirect:   body.Redirect,
			CSRFHeader: r.Header.Get(csrf.HeaderName),
			CSRFCookie: s.cookies.CSRFValue(r),
			Marker:     r.Header.Get(csrf.MarkerHeader),
		})
		switch {
		case apperrors.Is(err, apperrors.ErrCSRF), apperrors.Is(err, apperrors.ErrMalformedRequest):
			writeJSONError(w, "bad request", http.StatusBadRequest)
			return
		case err != nil:
			log.Info().Err(err).Msg("[CreateSessionHandler] authentication failed")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, s.cookies.SessionCookie(issued.Value, issued.MaxAge))
		writeJSON(w, http.StatusOK, createSessionResponse{
			OK:       true,
			Redirect: issued.Redirect,
			Location: redirect.Location(issued.Redirect),
		})
	}
}

func decodeCreateSession(w http.ResponseWriter, r *http.Request) (*createSessionRequest, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSessionBodyBytes))
	var body createSessionRequest
	if err := dec.Decode(&body); err != nil {
		return nil, apperrors.Join(apperrors.ErrMalformedRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedRequest, "trailing data after body")
	}
	return &body, nil
}

// RevokeSessionHandler logs the caller out. Once the CSRF check passes it always
// answers 200 and clears the session cookie, whatever happened upstream.
func (s *Server) RevokeSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.csrf.ValidateRequest(r) {
			writeJSONError(w, "bad request", http.StatusBadRequest)
			return
		}

		value, _ := s.cookies.SessionValue(r)
		s.sessions.RevokeSession(r.Context(), value)

		http.SetCookie(w, s.cookies.ClearedSessionCookie())
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// MeHandler returns the principal verified by the guard.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := guard.PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError never names the underlying cause.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
