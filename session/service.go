// Package session exchanges identity tokens for long-lived session credentials,
// verifies those credentials and revokes them.
//
// Creation fails closed: CSRF and input checks run before the identity provider
// is called and any provider failure is an authentication failure. Revocation
// fails soft: it never reports an error, so a client can always log out.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
	"github.com/mbark223/aipromptbuilder-sub002/internal/metrics"
	"github.com/mbark223/aipromptbuilder-sub002/redirect"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLifetime        = 5 * 24 * time.Hour
	DefaultFreshAuthWindow = 5 * time.Minute

	opCreate = "create"
	opRevoke = "revoke"
	opVerify = "verify"
)

// CreateParams is everything CreateSession needs from the inbound request.
type CreateParams struct {
	IDToken    string
	Redirect   string
	CSRFHeader string
	CSRFCookie string
	Marker     string
}

// Issued is a freshly minted session credential and where to send the client.
type Issued struct {
	Value     string
	MaxAge    time.Duration
	Redirect  string
	Principal *identity.Principal
}

type Service struct {
	provider    identity.Provider
	lifetime    time.Duration    // session credential lifetime
	freshWindow time.Duration    // maximum age of the sign-in behind an ID token
	metrics     *metrics.Metrics // nil disables metrics
	nowTime     func() time.Time
}

type ServiceOption func(*Service)

func WithLifetime(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.lifetime = d
	}
}

// WithFreshAuthWindow bounds how long ago the user must have actively signed in
// for their ID token to be exchanged.
func WithFreshAuthWindow(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.freshWindow = d
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(provider identity.Provider, options ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, errors.New("[session NewService] identity provider is required")
	}
	s := &Service{
		provider:    provider,
		lifetime:    DefaultLifetime,
		freshWindow: DefaultFreshAuthWindow,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.lifetime < identity.MinSessionLifetime || s.lifetime > identity.MaxSessionLifetime {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidLifetime, "[session NewService] %s outside [%s, %s]",
			s.lifetime, identity.MinSessionLifetime, identity.MaxSessionLifetime)
	}
	return s, nil
}

// Lifetime is the max age given to every issued credential.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// CreateSession exchanges a fresh ID token for a session credential.
//
// It returns ErrCSRF or ErrMalformedRequest without calling the identity
// provider, and ErrAuthentication for every verification or provider failure.
func (s *Service) CreateSession(ctx context.Context, params CreateParams) (*Issued, error) {
	issued, err := s.createSession(ctx, params)
	s.metrics.SessionOperation(opCreate, metrics.Outcome(err))
	return issued, err
}

func (s *Service) createSession(ctx context.Context, params CreateParams) (*Issued, error) {
	if !csrf.Validate(params.Marker, params.CSRFHeader, params.CSRFCookie) {
		return nil, apperrors.ErrCSRF
	}
	if params.IDToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedRequest, "missing idToken")
	}

	id, err := s.provider.VerifyIDToken(ctx, params.IDToken, true)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrAuthentication, err)
	}
	now := s.nowTime()
	if s.freshWindow > 0 && now.Sub(id.AuthTime) > s.freshWindow {
		return nil, apperrors.Join(apperrors.ErrAuthentication, apperrors.ErrStaleIDToken)
	}

	value, err := s.provider.CreateSessionCookie(ctx, params.IDToken, s.lifetime)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrAuthentication, err)
	}

	return &Issued{
		Value:    value,
		MaxAge:   s.lifetime,
		Redirect: redirect.Sanitize(params.Redirect),
		Principal: &identity.Principal{
			UID:       id.UID,
			Email:     id.Email,
			Name:      id.Name,
			AuthTime:  id.AuthTime,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.lifetime),
		},
	}, nil
}

// RevokeSession revokes the principal behind value, if value still verifies.
// Failures are logged and swallowed; the caller clears the cookie regardless.
func (s *Service) RevokeSession(ctx context.Context, value string) {
	if value == "" {
		s.metrics.SessionOperation(opRevoke, metrics.OutcomeSuccess)
		return
	}

	principal, err := s.provider.VerifySessionCookie(ctx, value, true)
	if err != nil {
		log.Debug().Err(err).Msg("[session RevokeSession] credential did not verify, nothing to revoke")
		s.metrics.SessionOperation(opRevoke, metrics.OutcomeError)
		return
	}

	if err := s.provider.RevokeRefreshTokens(ctx, principal.UID); err != nil {
		log.Err(err).Str("uid", principal.UID).Msg("[session RevokeSession] revocation failed")
		s.metrics.SessionOperation(opRevoke, metrics.OutcomeError)
		return
	}
	log.Info().Str("uid", principal.UID).Msg("session revoked")
	s.metrics.SessionOperation(opRevoke, metrics.OutcomeSuccess)
}

// VerifySession returns the principal behind value, or nil when value is empty
// or fails verification for any reason.
func (s *Service) VerifySession(ctx context.Context, value string) *identity.Principal {
	if value == "" {
		return nil
	}
	principal, err := s.provider.VerifySessionCookie(ctx, value, true)
	s.metrics.SessionOperation(opVerify, metrics.Outcome(err))
	if err != nil {
		log.Debug().Err(err).Msg("[session VerifySession] rejected credential")
		return nil
	}
	return principal
}
