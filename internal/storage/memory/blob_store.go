package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/rankscope/rankscope/internal/seo"
)

// BlobStore stores raw payloads in-memory and returns memory:// URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject persists the content and returns its URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	return "memory://" + path, nil
}

// GetObject reads previously stored content by URI or bare path.
func (s *BlobStore) GetObject(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "memory://")
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, seo.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
