// Package guard re-verifies the session credential in front of protected
// resources. Unlike the routing gate it calls the identity provider on every
// request, and it is required on every route that renders protected content.
package guard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	"github.com/mbark223/aipromptbuilder-sub002/gate"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	"github.com/mbark223/aipromptbuilder-sub002/internal/metrics"
)

const (
	modePage = "page"
	modeAPI  = "api"
)

// Verifier resolves a session credential to its principal, or nil.
type Verifier interface {
	VerifySession(ctx context.Context, value string) *identity.Principal
}

type Guard struct {
	verifier   Verifier
	cookies    cookies.Policy
	loginRoute string
	metrics    *metrics.Metrics
}

type Option func(*Guard)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func New(verifier Verifier, cookiePolicy cookies.Policy, loginRoute string, options ...Option) *Guard {
	g := &Guard{
		verifier:   verifier,
		cookies:    cookiePolicy,
		loginRoute: loginRoute,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Principal verifies the request's session cookie.
func (g *Guard) Principal(r *http.Request) *identity.Principal {
	p, _ := g.verify(r)
	return p
}

// verify also reports whether a session cookie was sent at all.
func (g *Guard) verify(r *http.Request) (*identity.Principal, bool) {
	value, ok := g.cookies.SessionValue(r)
	if !ok {
		return nil, false
	}
	return g.verifier.VerifySession(r.Context(), value), true
}

// deny clears a cookie that was sent but did not verify, so the next request
// to the login route carries no session.
func (g *Guard) deny(w http.ResponseWriter, mode string, present bool) {
	g.metrics.GuardDenied(mode)
	if present {
		http.SetCookie(w, g.cookies.ClearedSessionCookie())
	}
}

// RequireUser returns the verified principal. Otherwise it redirects to the
// login route with the current path as the redirect target and returns false.
// Every rejected credential produces the same redirect, and a rejected cookie
// is cleared.
func (g *Guard) RequireUser(w http.ResponseWriter, r *http.Request) (*identity.Principal, bool) {
	p, present := g.verify(r)
	if p != nil {
		return p, true
	}
	g.deny(w, modePage, present)
	http.Redirect(w, r, gate.LoginLocation(g.loginRoute, r.URL), http.StatusFound)
	return nil, false
}

// Pages protects server-rendered pages. The principal is available to next via
// PrincipalFromContext.
func (g *Guard) Pages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.RequireUser(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), p)))
	})
}

// API protects JSON resources, answering 401 instead of redirecting.
func (g *Guard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, present := g.verify(r)
		if p == nil {
			g.deny(w, modeAPI, present)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), p)))
	})
}

type contextKey struct{}

func NewContext(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal stored by Pages or API.
func PrincipalFromContext(ctx context.Context) (*identity.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*identity.Principal)
	return p, ok && p != nil
}
