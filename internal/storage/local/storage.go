// Package local implements the fast, size-limited local cache tier.
package local

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Storage is a byte key-value area the local store writes into.
// Implemented by MemoryStorage and clientdata.Repository.
type Storage interface {
	GetItem(ctx context.Context, key string) ([]byte, bool, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Size returns the total number of value bytes held.
	Size(ctx context.Context) (int64, error)
}

// MemoryStorage is an in-process Storage. Values are copied on the way in
// and out.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string][]byte
	size  int64
}

// NewMemoryStorage creates an empty in-memory storage area.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= int64(len(m.items[key]))
	m.items[key] = append([]byte(nil), value...)
	m.size += int64(len(value))
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= int64(len(m.items[key]))
	delete(m.items, key)
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) Size(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size, nil
}
