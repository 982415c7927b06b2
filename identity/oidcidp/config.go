package oidcidp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mbark223/aipromptbuilder-sub002/identity/revocation"
	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
	"github.com/mbark223/aipromptbuilder-sub002/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"
)

// sessionKeyInfo is the HKDF info string for the session credential key.
const sessionKeyInfo = "session-gateway/session-cookie/v1"

// NewFromConfig discovers the configured issuer and assembles a Provider with
// the Redis revocation store when REDIS_URL is set.
func NewFromConfig(ctx context.Context, cfg config.IdentityConfig, options ...Option) (*Provider, error) {
	if cfg.GetIssuerURL() == "" || cfg.GetClientID() == "" {
		return nil, fmt.Errorf("[oidcidp NewFromConfig] IDP_ISSUER_URL and IDP_CLIENT_ID are required")
	}

	discovered, err := oidc.NewProvider(ctx, cfg.GetIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("[oidcidp NewFromConfig] failed to create OIDC provider: %w", err)
	}
	verifier := discovered.Verifier(&oidc.Config{ClientID: cfg.GetClientID()})

	signer, err := token.NewHMACSigner(cfg.GetSessionSecret(), sessionKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("[oidcidp NewFromConfig] %w", err)
	}
	codec := token.NewCodec(signer,
		token.WithIssuer(cfg.GetSessionIssuer()),
		token.WithAudience(cfg.GetClientID()),
	)

	var store revocation.Store
	if cfg.GetRedisURL() != "" {
		store, err = revocation.NewRedisStoreFromURL(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("[oidcidp NewFromConfig] %w", err)
		}
	} else {
		log.Warn().Msg("REDIS_URL not set; revocation state is local to this process")
		store = revocation.NewMemoryStore()
	}

	options = append([]Option{WithTimeout(cfg.GetIDPTimeout())}, options...)
	if cfg.GetRevocationURL() != "" {
		options = append(options, WithRevoker(NewUpstreamRevoker(ctx, cfg.GetRevocationURL(), clientcredentials.Config{
			ClientID:     cfg.GetAdminClientID(),
			ClientSecret: cfg.GetAdminClientSecret(),
			TokenURL:     cfg.GetAdminTokenURL(),
			Scopes:       cfg.GetAdminScopes(),
		})))
	}

	return New(verifier, codec, store, options...), nil
}
