package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore tracks tokens invalidated before their natural expiry,
// keyed by jti. The store must be shared across every process instance
// serving the system; a per-instance store breaks logout correctness
// under multi-instance deployment. Entries may be dropped once past
// expires_at — the codec already rejects expired tokens.
type RevocationStore interface {
	// Revoke blacklists the jti. Idempotent: revoking twice is a no-op,
	// not an error. The first return value reports whether this call was
	// the one that inserted the entry; refresh rotation uses it as an
	// atomic check-and-revoke so at most one of two concurrent refreshes
	// with the same token wins.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (first bool, err error)

	// IsRevoked reports whether the jti is blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PurgeExpired drops entries whose tokens have passed their original
	// expiry and returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryRevocations is an in-process RevocationStore. Suitable for tests
// and single-instance deployments only; production multi-instance setups
// use the Postgres-backed store.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryRevocations constructs an empty in-process store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time)}
}

func (m *MemoryRevocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[jti]; ok {
		return false, nil
	}
	m.entries[jti] = expiresAt
	return true, nil
}

func (m *MemoryRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[jti]
	return ok, nil
}

func (m *MemoryRevocations) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for jti, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, jti)
			removed++
		}
	}
	return removed, nil
}
