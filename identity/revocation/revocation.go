// Package revocation stores, per principal, the instant before which every
// issued credential is considered revoked.
package revocation

import (
	"context"
	"time"
)

// Store is shared by every gateway replica; it is the identity provider's state,
// not the gateway's.
type Store interface {
	// SetValidSince revokes every credential of uid authenticated before t. The
	// record may be dropped after ttl, once no such credential can still be live.
	SetValidSince(ctx context.Context, uid string, t time.Time, ttl time.Duration) error

	// ValidSince returns the revocation instant for uid, if any.
	ValidSince(ctx context.Context, uid string) (time.Time, bool, error)
}
