package deviceauth

import (
	"context"
	"sync"
)

// MemoryStore implements the Store interface in process memory for tests
// and redis-less development runs.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

// NewMemoryStore creates a new in-memory attempt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]*Attempt)}
}

// Save stores or replaces an attempt.
func (s *MemoryStore) Save(ctx context.Context, attempt *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *attempt
	s.attempts[attempt.ID] = &copied
	return nil
}

// Get retrieves an attempt by id, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[id]
	if !ok {
		return nil, nil
	}
	copied := *attempt
	return &copied, nil
}

// CheckHealth always succeeds for the in-memory store.
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
