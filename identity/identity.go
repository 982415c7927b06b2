// Package identity defines the identity provider the gateway delegates all
// credential verification to.
package identity

import (
	"context"
	"time"
)

// Session credential lifetimes a Provider accepts in CreateSessionCookie.
const (
	MinSessionLifetime = 5 * time.Minute
	MaxSessionLifetime = 14 * 24 * time.Hour
)

// Identity is the verified content of a short-lived identity token.
type Identity struct {
	UID      string
	Email    string
	Name     string
	IssuedAt time.Time
	AuthTime time.Time // when the user last actively authenticated
	Expiry   time.Time
}

// Principal is the caller proven by a verified session credential.
type Principal struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	SessionID string    `json:"-"`
	AuthTime  time.Time `json:"authTime"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider verifies identity tokens and mints, verifies and revokes the
// long-lived session credentials derived from them.
type Provider interface {
	// VerifyIDToken verifies a raw identity token. With checkRevoked the token is
	// also rejected when it predates a revocation of the principal.
	VerifyIDToken(ctx context.Context, rawIDToken string, checkRevoked bool) (*Identity, error)

	// CreateSessionCookie exchanges a raw identity token for an opaque session
	// credential valid for expiresIn.
	CreateSessionCookie(ctx context.Context, rawIDToken string, expiresIn time.Duration) (string, error)

	// VerifySessionCookie verifies a session credential, optionally against the
	// principal's revocation state.
	VerifySessionCookie(ctx context.Context, sessionCookie string, checkRevoked bool) (*Principal, error)

	// RevokeRefreshTokens invalidates every credential issued to uid before now.
	RevokeRefreshTokens(ctx context.Context, uid string) error
}
