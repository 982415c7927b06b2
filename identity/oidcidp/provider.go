// Package oidcidp is an identity.Provider that accepts ID tokens from an OpenID
// Connect issuer and mints its own signed session credentials from them.
//
// Revocation state lives in a revocation.Store. Every credential whose auth_time
// precedes the principal's valid-since instant is rejected when verification
// asks for a revocation check.
package oidcidp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	"github.com/mbark223/aipromptbuilder-sub002/identity/revocation"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
	"github.com/mbark223/aipromptbuilder-sub002/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/mbark223/aipromptbuilder-sub002/identity/oidcidp"

	// MinSessionLifetime and MaxSessionLifetime bound CreateSessionCookie.
	MinSessionLifetime = identity.MinSessionLifetime
	MaxSessionLifetime = identity.MaxSessionLifetime

	defaultTimeout = 5 * time.Second
)

// Revoker is notified after a principal's local revocation record is written,
// e.g. to end the principal's sessions at the upstream issuer.
type Revoker interface {
	Revoke(ctx context.Context, uid string) error
}

// Observer receives the outcome of every provider call.
type Observer func(call string, elapsed time.Duration, err error)

type Provider struct {
	verifier *oidc.IDTokenVerifier
	codec    *token.Codec
	store    revocation.Store
	revoker  Revoker
	observe  Observer
	tracer   trace.Tracer
	timeout  time.Duration
	nowFunc  func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

func WithRevoker(r Revoker) Option {
	return func(p *Provider) {
		p.revoker = r
	}
}

func WithObserver(o Observer) Option {
	return func(p *Provider) {
		p.observe = o
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Provider) {
		p.tracer = t
	}
}

func New(verifier *oidc.IDTokenVerifier, codec *token.Codec, store revocation.Store, options ...Option) *Provider {
	p := &Provider{
		verifier: verifier,
		codec:    codec,
		store:    store,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.nowFunc == nil {
		p.nowFunc = time.Now
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	if p.observe == nil {
		p.observe = func(string, time.Duration, error) {}
	}
	return p
}

// idTokenClaims are the non-registered claims read from an ID token.
type idTokenClaims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	AuthTime int64  `json:"auth_time"`
}

func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string, checkRevoked bool) (*identity.Identity, error) {
	var id *identity.Identity
	err := p.instrument(ctx, "VerifyIDToken", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Bool("identity.check_revoked", checkRevoked))
		var err error
		id, err = p.verifyIDToken(ctx, rawIDToken, checkRevoked)
		return err
	})
	return id, err
}

func (p *Provider) verifyIDToken(ctx context.Context, rawIDToken string, checkRevoked bool) (*identity.Identity, error) {
	if rawIDToken == "" {
		return nil, apperrors.ErrInvalidIDToken
	}
	tok, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrInvalidIDToken, err)
	}
	if tok.Subject == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidIDToken, "missing subject")
	}

	var claims idTokenClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, apperrors.Join(apperrors.ErrInvalidIDToken, err)
	}
	authTime := tok.IssuedAt
	if claims.AuthTime > 0 {
		authTime = time.Unix(claims.AuthTime, 0)
	}

	id := &identity.Identity{
		UID:      tok.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		IssuedAt: tok.IssuedAt,
		AuthTime: authTime,
		Expiry:   tok.Expiry,
	}

	if checkRevoked {
		revoked, err := p.revokedBefore(ctx, id.UID, authTime)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, apperrors.Join(apperrors.ErrInvalidIDToken, apperrors.ErrSessionRevoked)
		}
	}
	return id, nil
}

func (p *Provider) CreateSessionCookie(ctx context.Context, rawIDToken string, expiresIn time.Duration) (string, error) {
	var cookie string
	err := p.instrument(ctx, "CreateSessionCookie", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int64("identity.expires_in_seconds", int64(expiresIn.Seconds())))
		if expiresIn < MinSessionLifetime || expiresIn > MaxSessionLifetime {
			return apperrors.Wrapf(apperrors.ErrInvalidLifetime, "%s outside [%s, %s]", expiresIn, MinSessionLifetime, MaxSessionLifetime)
		}
		id, err := p.verifyIDToken(ctx, rawIDToken, true)
		if err != nil {
			return err
		}
		cookie, _, err = p.codec.Mint(token.Subject{
			UID:      id.UID,
			Email:    id.Email,
			Name:     id.Name,
			AuthTime: id.AuthTime,
		}, expiresIn)
		if err != nil {
			return apperrors.Join(apperrors.ErrInternal, err)
		}
		return nil
	})
	return cookie, err
}

func (p *Provider) VerifySessionCookie(ctx context.Context, sessionCookie string, checkRevoked bool) (*identity.Principal, error) {
	var principal *identity.Principal
	err := p.instrument(ctx, "VerifySessionCookie", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Bool("identity.check_revoked", checkRevoked))
		claims, err := p.codec.Parse(sessionCookie)
		if err != nil {
			return err
		}
		authTime := time.Unix(claims.AuthTime, 0)
		if checkRevoked {
			revoked, err := p.revokedBefore(ctx, claims.Subject, authTime)
			if err != nil {
				return err
			}
			if revoked {
				return apperrors.ErrSessionRevoked
			}
		}
		principal = &identity.Principal{
			UID:       claims.Subject,
			Email:     claims.Email,
			Name:      claims.Name,
			SessionID: claims.ID,
			AuthTime:  authTime,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
		}
		return nil
	})
	return principal, err
}

func (p *Provider) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return p.instrument(ctx, "RevokeRefreshTokens", func(ctx context.Context, _ trace.Span) error {
		if uid == "" {
			return apperrors.Wrapf(apperrors.ErrNotFound, "empty uid")
		}
		// Credentials live at most MaxSessionLifetime, so the record can go after that.
		if err := p.store.SetValidSince(ctx, uid, p.nowFunc(), MaxSessionLifetime); err != nil {
			return apperrors.Join(apperrors.ErrProviderUnavailable, err)
		}
		if p.revoker != nil {
			if err := p.revoker.Revoke(ctx, uid); err != nil {
				return apperrors.Join(apperrors.ErrProviderUnavailable, err)
			}
		}
		return nil
	})
}

// Close releases the revocation store when it holds a connection.
func (p *Provider) Close() error {
	if c, ok := p.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// revokedBefore reports whether uid was revoked after authTime.
func (p *Provider) revokedBefore(ctx context.Context, uid string, authTime time.Time) (bool, error) {
	validSince, ok, err := p.store.ValidSince(ctx, uid)
	if err != nil {
		return false, apperrors.Join(apperrors.ErrProviderUnavailable, err)
	}
	return ok && authTime.Unix() < validSince.Unix(), nil
}

func (p *Provider) instrument(ctx context.Context, call string, fn func(context.Context, trace.Span) error) error {
	ctx, span := p.tracer.Start(ctx, "identity."+call)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx, span)
	if err != nil && ctx.Err() != nil && !apperrors.Is(err, apperrors.ErrProviderUnavailable) {
		err = apperrors.Join(apperrors.ErrProviderUnavailable, err)
	}
	p.observe(call, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%s failed", call))
	}
	return err
}
