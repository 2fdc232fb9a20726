package tokenstore

import (
	"context"
	"sync"
	"time"
)

type MemoryBlacklist struct {
	mu            sync.Mutex
	entries       map[string]time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

func NewMemoryBlacklist(sweepInterval time.Duration) *MemoryBlacklist {
	return &MemoryBlacklist{
		entries:       make(map[string]time.Time),
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

func (m *MemoryBlacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_ = ctx
	now := m.now()
	if jti == "" || !expiresAt.After(now) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[jti] = expiresAt
	m.sweepLocked(now)
	return nil
}

func (m *MemoryBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_ = ctx
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)
	exp, ok := m.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		delete(m.entries, jti)
		return false, nil
	}
	return true, nil
}

func (m *MemoryBlacklist) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryBlacklist) sweepLocked(now time.Time) {
	if !m.lastSweep.IsZero() && now.Sub(m.lastSweep) < m.sweepInterval {
		return
	}
	for jti, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, jti)
		}
	}
	m.lastSweep = now
}
