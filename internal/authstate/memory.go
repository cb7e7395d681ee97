package authstate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements the Store interface in process memory. It backs
// tests and single-node deployments that run without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*PendingAuthorization
}

// NewMemoryStore creates a new in-memory pending authorization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*PendingAuthorization)}
}

// Save inserts a pending authorization, failing on state collision.
func (s *MemoryStore) Save(ctx context.Context, pending *PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[pending.State]; ok && !existing.Expired(time.Now()) {
		return ErrStateExists
	}

	copied := *pending
	s.entries[pending.State] = &copied
	return nil
}

// Consume atomically retrieves and deletes the entry for a state token.
func (s *MemoryStore) Consume(ctx context.Context, state string) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.entries[state]
	if !ok {
		return nil, nil
	}
	delete(s.entries, state)

	if pending.Expired(time.Now()) {
		return nil, nil
	}

	copied := *pending
	return &copied, nil
}

// Has reports whether a fresh entry exists without consuming it.
func (s *MemoryStore) Has(ctx context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.entries[state]
	if !ok {
		return false, nil
	}
	if pending.Expired(time.Now()) {
		delete(s.entries, state)
		return false, nil
	}
	return true, nil
}

// CheckHealth always succeeds for the in-memory store.
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
