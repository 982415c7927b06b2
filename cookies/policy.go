package cookies

import (
	"net/http"
	"time"

	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
)

// Policy defines how the gateway's cookies are issued.
type Policy struct {
	SessionName     string
	CSRFName        string
	Secure          bool
	Path            string
	Domain          string // should usually be empty, and must be for __Host- cookies
	SessionLifetime time.Duration
	CSRFLifetime    time.Duration
}

// PolicyFromConfig builds the cookie policy for the configured environment.
func PolicyFromConfig(cfg config.CookieConfig) Policy {
	return Policy{
		SessionName:     cfg.GetSessionCookieName(),
		CSRFName:        cfg.GetCSRFCookieName(),
		Secure:          cfg.GetSecureCookies(),
		Path:            "/",
		SessionLifetime: cfg.GetSessionLifetime(),
		CSRFLifetime:    cfg.GetCSRFLifetime(),
	}
}

// normalize applies safe defaults without breaking callers
func (p Policy) normalize() Policy {
	if p.Path == "" {
		p.Path = "/"
	}
	if p.SessionName == "" {
		p.SessionName = "session"
	}
	if p.CSRFName == "" {
		p.CSRFName = "csrf_token"
	}
	return p
}

// SessionCookie carries a session credential for maxAge.
func (p Policy) SessionCookie(value string, maxAge time.Duration) *http.Cookie {
	p = p.normalize()
	return &http.Cookie{
		Name:     p.SessionName,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearedSessionCookie removes the session cookie from the client.
func (p Policy) ClearedSessionCookie() *http.Cookie {
	p = p.normalize()
	return &http.Cookie{
		Name:     p.SessionName,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFCookie carries a CSRF token. It is readable by script so the application
// can echo it in a request header.
func (p Policy) CSRFCookie(token string) *http.Cookie {
	p = p.normalize()
	return &http.Cookie{
		Name:     p.CSRFName,
		Value:    token,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(p.CSRFLifetime.Seconds()),
		HttpOnly: false,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionValue returns the session cookie sent with r. It only checks presence.
func (p Policy) SessionValue(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.normalize().SessionName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// CSRFValue returns the CSRF cookie sent with r.
func (p Policy) CSRFValue(r *http.Request) string {
	c, err := r.Cookie(p.normalize().CSRFName)
	if err != nil {
		return ""
	}
	return c.Value
}
