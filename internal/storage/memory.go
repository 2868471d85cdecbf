package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded values in process memory. Values never expire
// and no janitor goroutine is started.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	x, found := m.cache.Get(key)
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(x.([]byte), dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	m.cache.Set(key, b, cache.NoExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Has reports whether key is present.
func (m *MemoryStore) Has(key string) bool {
	_, found := m.cache.Get(key)
	return found
}

func (m *MemoryStore) Close() error {
	m.cache.Flush()
	return nil
}

var _ Store = (*MemoryStore)(nil)
