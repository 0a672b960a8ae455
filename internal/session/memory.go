package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process. Every write extends the entry's
// lifetime by ttl.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		sessions: map[string]*memoryEntry{},
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryBackend) Get(_ context.Context, sid string, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	entry, ok := m.sessions[sid]
	if !ok || m.expired(entry) {
		return out, nil
	}
	for _, k := range keys {
		if v, ok := entry.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryBackend) SetMany(_ context.Context, sid string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sid]
	if !ok || m.expired(entry) {
		entry = &memoryEntry{values: map[string]string{}}
		m.sessions[sid] = entry
	}
	for k, v := range values {
		entry.values[k] = v
	}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, sid string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sid]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(entry.values, k)
	}
	if len(entry.values) == 0 {
		delete(m.sessions, sid)
	}
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for sid, entry := range m.sessions {
		if m.expired(entry) {
			delete(m.sessions, sid)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryBackend) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryBackend) expired(e *memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
