// ABOUTME: Logout revocation list with an in-memory, sweeping implementation
// ABOUTME: Entries live until their token's natural expiry, then are evicted

package auth

import (
	"context"
	"sync"
	"time"
)

// Revocations remembers tokens invalidated before their natural expiry.
// Implementations must be safe for concurrent use, and a Revoke that
// returned nil must be visible to every later IsRevoked.
type Revocations interface {
	// Revoke records token until expiresAt. Revoking twice is a no-op.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether token has been revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Close releases resources. It is safe to call multiple times.
	Close() error
}

// MemoryRevocations is a process-local Revocations. A background goroutine
// drops entries whose token has expired, since the expiry check already
// rejects those tokens.
type MemoryRevocations struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // token -> token expiry
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// NewMemoryRevocations creates an empty revocation list that sweeps expired
// entries every interval.
func NewMemoryRevocations(sweepInterval time.Duration) *MemoryRevocations {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	m := &MemoryRevocations{
		revoked: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.sweep(sweepInterval)
	return m
}

// Revoke records token. A repeat keeps the later expiry.
func (m *MemoryRevocations) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.revoked[token]; ok && !expiresAt.After(existing) {
		return nil
	}
	m.revoked[token] = expiresAt
	return nil
}

// IsRevoked reports whether token is on the list.
func (m *MemoryRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.revoked[token]
	return ok, nil
}

// Len returns the number of tracked tokens.
func (m *MemoryRevocations) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.revoked)
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (m *MemoryRevocations) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runSweep()
		case <-m.done:
			return
		}
	}
}

// runSweep removes every entry whose token has expired.
func (m *MemoryRevocations) runSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for token, exp := range m.revoked {
		if !now.Before(exp) {
			delete(m.revoked, token)
		}
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (m *MemoryRevocations) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		close(m.done)
		m.closed = true
	}
	return nil
}
