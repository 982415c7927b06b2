package config

import "time"

type Config interface {
	EnvConfig
	CookieConfig
	IdentityConfig
	GateConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
	GetBaseURL() string
}

type CookieConfig interface {
	GetSessionCookieName() string
	GetCSRFCookieName() string
	GetSecureCookies() bool
	GetSessionLifetime() time.Duration
	GetCSRFLifetime() time.Duration
}

type mainConfig struct {
	EnvVars
	Cookies
	Identity
	Gate
}

// Option overrides a value that would otherwise come from the environment.
type Option func(*mainConfig)

// WithPort overrides the PORT environment variable.
func WithPort(port string) Option {
	return func(c *mainConfig) {
		if port != "" {
			c.EnvVars.port = port
		}
	}
}

// WithGatePolicyFile overrides the GATE_POLICY_FILE environment variable.
func WithGatePolicyFile(path string) Option {
	return func(c *mainConfig) {
		if path != "" {
			c.Gate.policyFile = path
		}
	}
}

func New(opts ...Option) Config {
	c := mainConfig{}
	for _, opt := range opts {
		opt(&c)
	}
	c.Cookies.env = c.EnvVars
	return c
}
