package checkpoint

import (
	"context"
	"sync"

	"github.com/byteberry/statsync/pkg/metrics"
)

// MemoryStore is an in-process Store for tests and Redis-less runs
type MemoryStore struct {
	mu   sync.Mutex
	data map[Key]map[metrics.Date]struct{}
}

// NewMemoryStore creates an empty in-memory checkpoint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[Key]map[metrics.Date]struct{}),
	}
}

// Load implements Store
func (s *MemoryStore) Load(_ context.Context, key Key) (map[metrics.Date]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[metrics.Date]struct{}, len(s.data[key]))
	for d := range s.data[key] {
		set[d] = struct{}{}
	}

	return set, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, key Key, dates []metrics.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.data[key]
	if !ok {
		set = make(map[metrics.Date]struct{}, len(dates))
		s.data[key] = set
	}

	for _, d := range dates {
		set[d] = struct{}{}
	}

	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}
