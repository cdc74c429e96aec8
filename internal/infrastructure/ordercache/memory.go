package ordercache

import (
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

type memoryEntry struct {
	snap      domain.ActiveOrderSnapshot
	expiresAt time.Time
}

type MemoryStore struct {
	entries   map[string]memoryEntry
	mu        sync.RWMutex
	stopClean chan struct{}
	cleanOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		entries:   make(map[string]memoryEntry),
		stopClean: make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryStore) Set(key string, snap domain.ActiveOrderSnapshot, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{snap: snap, expiresAt: expiresAt}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Get(key string) (domain.ActiveOrderSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return domain.ActiveOrderSnapshot{}, ErrNotFound
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return domain.ActiveOrderSnapshot{}, ErrNotFound
	}

	return entry.snap, nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopClean:
			return
		}
	}
}

func (m *MemoryStore) removeExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

func (m *MemoryStore) Close() error {
	m.cleanOnce.Do(func() {
		close(m.stopClean)
	})
	return nil
}
