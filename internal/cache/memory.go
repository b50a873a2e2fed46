package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, keyNotFound(key)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		v, ok := m.items[key]
		if !ok {
			return nil, keyNotFound(key)
		}
		out[i] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	return m.MSet(ctx, Entry{Key: key, Value: value})
}

func (m *MemoryStore) MSet(ctx context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.items[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
