// store/memory.go
package store

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store with expiring entries. Used by tests
// and single-binary development runs where no redis is available.
type MemoryStore struct {
	entries map[string]memoryEntry
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mutex.RLock()
	entry, exists := s.entries[key]
	s.mutex.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mutex.Lock()
		delete(s.entries, key)
		s.mutex.Unlock()
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mutex.Lock()
	s.entries[key] = entry
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mutex.Lock()
	delete(s.entries, key)
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
