// Package oidcidptest provides an in-process OpenID Connect issuer for tests.
package oidcidptest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	DefaultIssuer   = "https://issuer.test"
	DefaultClientID = "gateway-app"
)

// Issuer signs RS256 ID tokens and hands out a verifier that trusts them.
type Issuer struct {
	URL      string
	ClientID string

	key *rsa.PrivateKey
	mu  sync.Mutex
	now time.Time
}

// NewIssuer returns an issuer whose clock starts at now.
func NewIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Issuer{
		URL:      DefaultIssuer,
		ClientID: DefaultClientID,
		key:      key,
		now:      now,
	}
}

func (i *Issuer) Now() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.now
}

// Advance moves the shared clock forward.
func (i *Issuer) Advance(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.now = i.now.Add(d)
}

// Verifier trusts tokens from this issuer only, using the issuer's clock.
func (i *Issuer) Verifier() *oidc.IDTokenVerifier {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&i.key.PublicKey}}
	return oidc.NewVerifier(i.URL, keys, &oidc.Config{
		ClientID: i.ClientID,
		Now:      i.Now,
	})
}

// TokenOption adjusts the claims of a minted ID token.
type TokenOption func(jwt.MapClaims)

func WithAuthTime(t time.Time) TokenOption {
	return func(c jwt.MapClaims) {
		c["auth_time"] = t.Unix()
	}
}

func WithExpiry(t time.Time) TokenOption {
	return func(c jwt.MapClaims) {
		c["exp"] = t.Unix()
	}
}

func WithAudience(aud string) TokenOption {
	return func(c jwt.MapClaims) {
		c["aud"] = aud
	}
}

func WithIssuerURL(iss string) TokenOption {
	return func(c jwt.MapClaims) {
		c["iss"] = iss
	}
}

func WithEmail(email string) TokenOption {
	return func(c jwt.MapClaims) {
		c["email"] = email
	}
}

// IDToken mints a signed ID token for sub, authenticated at the current clock
// and valid for an hour unless overridden.
func (i *Issuer) IDToken(t *testing.T, sub string, opts ...TokenOption) string {
	t.Helper()
	now := i.Now()
	claims := jwt.MapClaims{
		"iss":       i.URL,
		"aud":       i.ClientID,
		"sub":       sub,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"auth_time": now.Unix(),
		"email":     sub + "@example.com",
		"name":      "Test " + sub,
	}
	for _, opt := range opts {
		opt(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	require.NoError(t, err)
	return signed
}

// ForeignIDToken is signed by a key the verifier does not trust.
func (i *Issuer) ForeignIDToken(t *testing.T, sub string) string {
	t.Helper()
	other := &Issuer{URL: i.URL, ClientID: i.ClientID, now: i.Now()}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other.key = key
	return other.IDToken(t, sub)
}
