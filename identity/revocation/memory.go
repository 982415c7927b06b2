package revocation

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	validSince time.Time
	expires    time.Time
}

// MemoryStore is a single-process Store for development and tests.
type MemoryStore struct {
	entries map[string]entry
	mu      sync.Mutex
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the store's time source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// SetValidSince records t for uid and drops every expired entry.
func (m *MemoryStore) SetValidSince(_ context.Context, uid string, t time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evictLocked(now)
	m.entries[uid] = entry{validSince: t, expires: now.Add(ttl)}
	return nil
}

// ValidSince returns uid's record, evicting it when it has expired.
func (m *MemoryStore) ValidSince(_ context.Context, uid string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[uid]
	if !ok {
		return time.Time{}, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, uid)
		return time.Time{}, false, nil
	}
	return e.validSince, true, nil
}

func (m *MemoryStore) evictLocked(now time.Time) {
	for uid, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, uid)
		}
	}
}

// Len reports the number of stored entries, including expired ones not yet evicted.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
