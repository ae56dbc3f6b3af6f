package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loadnetwork/load-s3-agent/internal/common"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (m *MemoryStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[objKey(bucket, key)] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objKey(bucket, key)]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) Presign(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[objKey(bucket, key)]; !ok {
		return "", common.ErrNotFound
	}
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s/%s?expires=%d", bucket, key, expires), nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of stored objects; test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
