package config

import (
	"strings"
	"time"
)

type IdentityConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetSessionSecret() string
	GetSessionIssuer() string
	GetFreshAuthWindow() time.Duration
	GetIDPTimeout() time.Duration
	GetRedisURL() string
	GetRevocationURL() string
	GetAdminClientID() string
	GetAdminClientSecret() string
	GetAdminTokenURL() string
	GetAdminScopes() []string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIssuerURL is the OpenID Connect issuer whose ID tokens are exchanged for sessions.
func (Identity) GetIssuerURL() string {
	return GetEnv("IDP_ISSUER_URL", "")
}

// GetClientID is the expected audience of incoming ID tokens.
func (Identity) GetClientID() string {
	return GetEnv("IDP_CLIENT_ID", "")
}

// GetSessionSecret is the input key material for the session credential signing key.
func (Identity) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Identity) GetSessionIssuer() string {
	return GetEnv("SESSION_ISSUER", "session-gateway")
}

func (Identity) GetFreshAuthWindow() time.Duration {
	return GetDuration("IDP_FRESH_AUTH_WINDOW", 5*time.Minute)
}

func (Identity) GetIDPTimeout() time.Duration {
	return GetDuration("IDP_TIMEOUT", 5*time.Second)
}

// GetRedisURL selects the shared revocation store. Empty means in-memory, which is
// only suitable for a single replica.
func (Identity) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

// GetRevocationURL is the optional upstream endpoint notified when a principal's
// refresh material is revoked.
func (Identity) GetRevocationURL() string {
	return GetEnv("IDP_REVOCATION_URL", "")
}

func (Identity) GetAdminClientID() string {
	return GetEnv("IDP_ADMIN_CLIENT_ID", "")
}

func (Identity) GetAdminClientSecret() string {
	return GetEnv("IDP_ADMIN_CLIENT_SECRET", "")
}

func (Identity) GetAdminTokenURL() string {
	return GetEnv("IDP_ADMIN_TOKEN_URL", "")
}

func (Identity) GetAdminScopes() []string {
	raw := GetEnv("IDP_ADMIN_SCOPES", "")
	if raw == "" {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

// GetDuration parses a time.Duration environment variable, falling back to
// defaultValue when unset or unparsable.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
