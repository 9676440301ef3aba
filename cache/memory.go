package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/deepscout/deepscout/research"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with lazy expiry. Safe for concurrent
// use by independent orchestrator instances.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached result, treating expired entries as absent. Expired
// entries are removed opportunistically on the next write to their key.
func (s *MemoryStore) Get(_ context.Context, key string) (*research.Result, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	var result research.Result
	if err := json.Unmarshal(entry.payload, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// Set stores the serialized result, overwriting any previous entry.
func (s *MemoryStore) Set(_ context.Context, key string, result *research.Result, ttl time.Duration) error {
	if result == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Len reports the number of physically present entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
