package storage

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStorage bounds the number of cached sandbox blobs with a real LRU
// eviction policy, replacing the hand-rolled doubly-linked-list cache
// templar/internal/build.BuildCache implements for the same reason: a
// process-local cache of bounded size that sheds the least-recently-used
// entries once full.
type MemoryStorage struct {
	cache *lru.Cache[string, []byte]
}

// NewMemoryStorage creates an in-memory Storage bounded to maxEntries
// sandbox blobs.
func NewMemoryStorage(maxEntries int) (*MemoryStorage, error) {
	cache, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryStorage{cache: cache}, nil
}

func (m *MemoryStorage) Save(_ context.Context, sandboxID string, blob []byte) error {
	m.cache.Add(sandboxID, blob)
	return nil
}

func (m *MemoryStorage) Load(_ context.Context, sandboxID string) ([]byte, bool, error) {
	blob, ok := m.cache.Get(sandboxID)
	return blob, ok, nil
}

func (m *MemoryStorage) Clear(_ context.Context, sandboxID string) error {
	m.cache.Remove(sandboxID)
	return nil
}
