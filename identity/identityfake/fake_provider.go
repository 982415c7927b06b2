package identityfake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider is an in-memory identity.Provider that counts its calls.
// ID tokens are registered up front with AddIDToken; anything else is invalid.
type FakeProvider struct {
	idTokens map[string]*identity.Identity
	sessions map[string]*identity.Principal
	revoked  map[string]time.Time
	lock     sync.RWMutex

	VerifyIDTokenErr       error
	CreateSessionErr       error
	VerifySessionErr       error
	RevokeErr              error
	LastExpiresIn          time.Duration
	verifyIDTokenCalls     atomic.Int64
	createSessionCalls     atomic.Int64
	verifySessionCalls     atomic.Int64
	revokeRefreshTokenCall atomic.Int64
	now                    func() time.Time
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		idTokens: make(map[string]*identity.Identity),
		sessions: make(map[string]*identity.Principal),
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithClock replaces the provider clock.
func (fp *FakeProvider) WithClock(now func() time.Time) *FakeProvider {
	fp.now = now
	return fp
}

// AddIDToken registers raw as a valid ID token for id.
func (fp *FakeProvider) AddIDToken(raw string, id identity.Identity) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.idTokens[raw] = &id
}

func (fp *FakeProvider) VerifyIDToken(_ context.Context, rawIDToken string, checkRevoked bool) (*identity.Identity, error) {
	fp.verifyIDTokenCalls.Add(1)
	if fp.VerifyIDTokenErr != nil {
		return nil, fp.VerifyIDTokenErr
	}
	fp.lock.RLock()
	defer fp.lock.RUnlock()
	return fp.lookupIDToken(rawIDToken, checkRevoked)
}

func (fp *FakeProvider) lookupIDToken(rawIDToken string, checkRevoked bool) (*identity.Identity, error) {
	id, ok := fp.idTokens[rawIDToken]
	if !ok {
		return nil, apperrors.ErrInvalidIDToken
	}
	if checkRevoked && fp.isRevoked(id.UID, id.AuthTime) {
		return nil, apperrors.Join(apperrors.ErrInvalidIDToken, apperrors.ErrSessionRevoked)
	}
	copied := *id
	return &copied, nil
}

func (fp *FakeProvider) CreateSessionCookie(_ context.Context, rawIDToken string, expiresIn time.Duration) (string, error) {
	fp.createSessionCalls.Add(1)
	if fp.CreateSessionErr != nil {
		return "", fp.CreateSessionErr
	}
	fp.lock.Lock()
	defer fp.lock.Unlock()

	fp.LastExpiresIn = expiresIn
	id, err := fp.lookupIDToken(rawIDToken, true)
	if err != nil {
		return "", err
	}
	now := fp.now()
	value := "fake-session-" + uuid.NewString()
	fp.sessions[value] = &identity.Principal{
		UID:       id.UID,
		Email:     id.Email,
		Name:      id.Name,
		SessionID: value,
		AuthTime:  id.AuthTime,
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
	}
	return value, nil
}

func (fp *FakeProvider) VerifySessionCookie(_ context.Context, sessionCookie string, checkRevoked bool) (*identity.Principal, error) {
	fp.verifySessionCalls.Add(1)
	if fp.VerifySessionErr != nil {
		return nil, fp.VerifySessionErr
	}
	fp.lock.RLock()
	defer fp.lock.RUnlock()

	p, ok := fp.sessions[sessionCookie]
	if !ok {
		return nil, apperrors.ErrInvalidSession
	}
	if !fp.now().Before(p.ExpiresAt) {
		return nil, apperrors.ErrSessionExpired
	}
	if checkRevoked && fp.isRevoked(p.UID, p.AuthTime) {
		return nil, apperrors.ErrSessionRevoked
	}
	copied := *p
	return &copied, nil
}

func (fp *FakeProvider) RevokeRefreshTokens(_ context.Context, uid string) error {
	fp.revokeRefreshTokenCall.Add(1)
	if fp.RevokeErr != nil {
		return fp.RevokeErr
	}
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.revoked[uid] = fp.now()
	return nil
}

func (fp *FakeProvider) isRevoked(uid string, authTime time.Time) bool {
	since, ok := fp.revoked[uid]
	return ok && authTime.Unix() < since.Unix()
}

// Calls returns the total number of provider calls made so far.
func (fp *FakeProvider) Calls() int64 {
	return fp.verifyIDTokenCalls.Load() +
		fp.createSessionCalls.Load() +
		fp.verifySessionCalls.Load() +
		fp.revokeRefreshTokenCall.Load()
}

func (fp *FakeProvider) CreateSessionCalls() int64 { return fp.createSessionCalls.Load() }
func (fp *FakeProvider) VerifySessionCalls() int64 { return fp.verifySessionCalls.Load() }
func (fp *FakeProvider) RevokeCalls() int64        { return fp.revokeRefreshTokenCall.Load() }
