package oidcidp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// UIDPlaceholder is replaced by the path-escaped principal id in the revocation
// endpoint, e.g. "https://idp.example.com/admin/users/{uid}/logout".
const UIDPlaceholder = "{uid}"

// UpstreamRevoker ends a principal's sessions at the upstream issuer through an
// admin endpoint authenticated with client credentials.
type UpstreamRevoker struct {
	client   *http.Client
	endpoint string
}

var _ Revoker = (*UpstreamRevoker)(nil)

func NewUpstreamRevoker(ctx context.Context, endpoint string, creds clientcredentials.Config) *UpstreamRevoker {
	return &UpstreamRevoker{
		client:   creds.Client(ctx),
		endpoint: endpoint,
	}
}

func (u *UpstreamRevoker) Revoke(ctx context.Context, uid string) error {
	endpoint := strings.ReplaceAll(u.endpoint, UIDPlaceholder, url.PathEscape(uid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("[UpstreamRevoker Revoke] build request: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("[UpstreamRevoker Revoke] %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("[UpstreamRevoker Revoke] unexpected status %d", resp.StatusCode)
	}
	return nil
}
