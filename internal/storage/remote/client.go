// Package remote implements the durable document-store cache tier.
package remote

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aristath/fincache/internal/domain"
)

// DocumentClient is a flat document store addressed by slash-separated keys.
// Implemented by S3Client, RedisClient and MemoryClient.
type DocumentClient interface {
	// GetDocument returns domain.ErrDocumentNotFound for a missing key.
	GetDocument(ctx context.Context, key string) ([]byte, error)
	PutDocument(ctx context.Context, key string, body []byte) error
	// DeleteDocument is a no-op for a missing key.
	DeleteDocument(ctx context.Context, key string) error
	DocumentExists(ctx context.Context, key string) (bool, error)
	ListDocuments(ctx context.Context, prefix string) ([]string, error)
}

// MemoryClient is an in-process DocumentClient.
type MemoryClient struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryClient creates an empty in-memory document store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{docs: make(map[string][]byte)}
}

func (m *MemoryClient) GetDocument(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.docs[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return append([]byte(nil), body...), nil
}

func (m *MemoryClient) PutDocument(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryClient) DeleteDocument(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *MemoryClient) DocumentExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[key]
	return ok, nil
}

func (m *MemoryClient) ListDocuments(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
