package framecache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	png       []byte
	expiresAt time.Time
}

// Memory is an in-process Cache for single-node deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, sessionID string, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(png))
	copy(stored, png)
	m.entries[sessionID] = memoryEntry{png: stored, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Get implements Cache. Expired entries are dropped lazily on access.
func (m *Memory) Get(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return entry.png, nil
}

// Delete drops the session's entry, typically on disconnect.
func (m *Memory) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
}
