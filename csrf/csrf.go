// Package csrf implements the double-submit cookie check guarding the session
// endpoints.
//
// The token lives in a cookie that the application's own script can read and
// echo in the X-CSRF-Token header. A cross-site page can make the browser send
// the cookie but cannot read it, so it cannot produce a matching header. The
// X-Requested-With marker additionally rules out plain cross-site form posts,
// which cannot set custom headers.
package csrf

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/mbark223/aipromptbuilder-sub002/cookies"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
)

const (
	// HeaderName carries the echoed token.
	HeaderName = "X-CSRF-Token"
	// MarkerHeader must carry MarkerValue on every state-changing call.
	MarkerHeader = "X-Requested-With"
	MarkerValue  = "XMLHttpRequest"
)

type Service struct {
	policy   cookies.Policy
	newToken func() (string, error)
}

type Option func(*Service)

// WithTokenFunc replaces the UUID token generator.
func WithTokenFunc(f func() (string, error)) Option {
	return func(s *Service) {
		s.newToken = f
	}
}

func NewService(policy cookies.Policy, opts ...Option) *Service {
	s := &Service{
		policy:   policy,
		newToken: newUUIDToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newUUIDToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", apperrors.Wrapf(err, "[csrf newUUIDToken]")
	}
	return id.String(), nil
}

// EnsureToken returns the CSRF token already in jar, or writes and returns a new
// one. An existing token is never rotated.
func (s *Service) EnsureToken(jar cookies.Jar) (string, error) {
	if token, ok := jar.Get(s.policy.CSRFName); ok {
		return token, nil
	}
	token, err := s.newToken()
	if err != nil {
		return "", err
	}
	jar.Set(s.policy.CSRFCookie(token))
	return token, nil
}

// Validate reports whether a state-changing request carries the marker header
// and a CSRF header equal to the CSRF cookie.
func (s *Service) Validate(marker, header, cookie string) bool {
	return Validate(marker, header, cookie)
}

// ValidateRequest reads the marker, header and cookie from r.
func (s *Service) ValidateRequest(r *http.Request) bool {
	return Validate(r.Header.Get(MarkerHeader), r.Header.Get(HeaderName), s.policy.CSRFValue(r))
}

// Validate is the stateless double-submit check.
func Validate(marker, header, cookie string) bool {
	if marker != MarkerValue {
		return false
	}
	if header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying the token ensured for this request.
func NewContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// TokenFromContext returns the token stored by NewContext, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	return token, ok && token != ""
}
