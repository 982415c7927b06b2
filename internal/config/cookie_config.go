package config

import "time"

const (
	sessionCookieName       = "session"
	secureSessionCookieName = "__Secure-session"
	csrfCookieName          = "csrf_token"
)

type Cookies struct {
	env EnvVars
}

var _ CookieConfig = Cookies{}

// GetSessionCookieName returns the __Secure- prefixed name in production. Browsers
// refuse __Secure- cookies over plain HTTP, so development uses the bare name.
func (c Cookies) GetSessionCookieName() string {
	if c.env.IsProduction() {
		return secureSessionCookieName
	}
	return sessionCookieName
}

func (Cookies) GetCSRFCookieName() string {
	return csrfCookieName
}

func (c Cookies) GetSecureCookies() bool {
	return c.env.IsProduction()
}

func (Cookies) GetSessionLifetime() time.Duration {
	return GetDuration("SESSION_LIFETIME", 5*24*time.Hour) // 5 days
}

func (Cookies) GetCSRFLifetime() time.Duration {
	return 2 * 24 * time.Hour // 2 days
}
