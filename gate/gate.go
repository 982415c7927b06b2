// Package gate is the routing gate run in front of every page request.
//
// The gate only checks whether a session cookie is present. It never calls the
// identity provider, so a forged or revoked cookie gets past it; protected
// content must still be served behind the guard package.
package gate

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
	"github.com/mbark223/aipromptbuilder-sub002/internal/metrics"
	"github.com/mbark223/aipromptbuilder-sub002/redirect"
	"github.com/rs/zerolog/log"
)

// RedirectParam is the login route query parameter holding the original target.
const RedirectParam = "redirect"

type Action int

const (
	Pass Action = iota
	Redirect
)

func (a Action) String() string {
	switch a {
	case Redirect:
		return "redirect"
	default:
		return "pass"
	}
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Action     Action
	Location   string // set when Action is Redirect
	EnsureCSRF bool
}

// Policy lists the paths the gate treats specially. Public paths match exactly,
// or by prefix when they end in "/".
type Policy struct {
	LoginRoute      string
	PublicPaths     []string
	APIPrefix       string
	AssetPrefixes   []string
	AssetExtensions []string
	BypassPaths     []string
}

func PolicyFromConfig(p config.GatePolicy) Policy {
	extensions := make([]string, 0, len(p.AssetExtensions))
	for _, ext := range p.AssetExtensions {
		extensions = append(extensions, strings.ToLower(ext))
	}
	return Policy{
		LoginRoute:      p.LoginRoute,
		PublicPaths:     p.PublicPaths,
		APIPrefix:       p.APIPrefix,
		AssetPrefixes:   p.AssetPrefixes,
		AssetExtensions: extensions,
		BypassPaths:     p.BypassPaths,
	}
}

// DefaultPolicy is PolicyFromConfig(config.DefaultGatePolicy()).
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultGatePolicy())
}

// Excluded reports whether p is an asset, API or bypass path the gate ignores.
func (p Policy) Excluded(urlPath string) bool {
	for _, bypass := range p.BypassPaths {
		if urlPath == bypass {
			return true
		}
	}
	if p.APIPrefix != "" {
		if strings.HasPrefix(urlPath, p.APIPrefix) || urlPath == strings.TrimSuffix(p.APIPrefix, "/") {
			return true
		}
	}
	for _, prefix := range p.AssetPrefixes {
		if strings.HasPrefix(urlPath, prefix) {
			return true
		}
	}
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" {
		for _, assetExt := range p.AssetExtensions {
			if ext == assetExt {
				return true
			}
		}
	}
	return false
}

func (p Policy) IsPublic(urlPath string) bool {
	for _, public := range p.PublicPaths {
		if urlPath == public {
			return true
		}
		if strings.HasSuffix(public, "/") && strings.HasPrefix(urlPath, public) {
			return true
		}
	}
	return false
}

// Decide applies the gate's decision table to u. hasSession is cookie presence
// only.
func (p Policy) Decide(u *url.URL, hasSession bool) Decision {
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}

	switch {
	case p.Excluded(reqPath):
		return Decision{Action: Pass}

	case reqPath == p.LoginRoute:
		d := Decision{Action: Pass, EnsureCSRF: true}
		if hasSession {
			if target := redirect.Sanitize(u.Query().Get(RedirectParam)); target != reqPath {
				d.Action, d.Location = Redirect, target
			}
		}
		return d

	case !hasSession && p.IsPublic(reqPath):
		return Decision{Action: Pass}

	case !hasSession:
		return Decision{Action: Redirect, Location: LoginLocation(p.LoginRoute, u)}

	case p.IsPublic(reqPath):
		if target := redirect.Sanitize(u.Query().Get(RedirectParam)); target != reqPath {
			return Decision{Action: Redirect, Location: target}
		}
		return Decision{Action: Pass}
	}
	return Decision{Action: Pass}
}

// LoginLocation is the login route carrying u's path and query as the redirect
// target.
func LoginLocation(loginRoute string, u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return loginRoute + "?" + RedirectParam + "=" + url.QueryEscape(target)
}

type Gate struct {
	policy  Policy
	cookies cookies.Policy
	csrf    *csrf.Service
	metrics *metrics.Metrics
}

type Option func(*Gate)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(policy Policy, cookiePolicy cookies.Policy, csrfService *csrf.Service, options ...Option) *Gate {
	g := &Gate{
		policy:  policy,
		cookies: cookiePolicy,
		csrf:    csrfService,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Gate) Policy() Policy {
	return g.policy
}

// Middleware runs the gate before next. A CSRF token ensured on the login route
// is also placed in the request context for the login handler.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSession := g.cookies.SessionValue(r)
		d := g.policy.Decide(r.URL, hasSession)

		if d.EnsureCSRF {
			token, err := g.csrf.EnsureToken(cookies.NewHTTPJar(w, r))
			if err != nil {
				log.Err(err).Msg("[gate Middleware] could not issue csrf token")
			} else {
				r = r.WithContext(csrf.NewContext(r.Context(), token))
			}
		}

		g.metrics.GateDecision(d.Action.String())
		if d.Action == Redirect {
			http.Redirect(w, r, redirect.Location(d.Location), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
