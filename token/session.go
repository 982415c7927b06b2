package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
	"github.com/pkg/errors"
)

// SessionClaims is the signed content of a session credential.
type SessionClaims struct {
	jwt.RegisteredClaims
	AuthTime int64  `json:"auth_time"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Subject describes whom a session credential is issued to.
type Subject struct {
	UID      string
	Email    string
	Name     string
	AuthTime time.Time
}

// Codec mints and parses session credentials.
type Codec struct {
	signer   Signer
	issuer   string
	audience string
	nowFunc  func() time.Time
}

type CodecOption func(*Codec)

func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

func WithAudience(audience string) CodecOption {
	return func(c *Codec) {
		c.audience = audience
	}
}

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(signer Signer, options ...CodecOption) *Codec {
	c := &Codec{
		signer:   signer,
		issuer:   "session-gateway",
		audience: "session-gateway",
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// Mint issues a session credential for subject, valid for lifetime from now.
func (c *Codec) Mint(subject Subject, lifetime time.Duration) (string, *SessionClaims, error) {
	if strings.TrimSpace(subject.UID) == "" {
		return "", nil, errors.New("Codec.Mint: empty subject")
	}
	now := c.nowFunc()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject.UID,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.New().String(),
		},
		AuthTime: subject.AuthTime.Unix(),
		Email:    subject.Email,
		Name:     subject.Name,
	}
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "Codec.Mint Sign")
	}
	return signed, claims, nil
}

// Parse verifies the signature, issuer, audience and validity window of raw.
// Expired credentials yield ErrSessionExpired; anything else ErrInvalidSession.
func (c *Codec) Parse(raw string) (*SessionClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.ErrInvalidSession
	}

	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Join(apperrors.ErrSessionExpired, err)
		}
		return nil, apperrors.Join(apperrors.ErrInvalidSession, err)
	}
	if !tok.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.ErrInvalidSession
	}
	return claims, nil
}
