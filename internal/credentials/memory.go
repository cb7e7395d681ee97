package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements the Store interface in process memory for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Get returns the record for a provider id, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return copyRecord(record), nil
}

// List returns all credential records in creation order.
func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, copyRecord(s.records[id]))
	}
	return records, nil
}

// FindByAccount returns the record matching a provider type and vendor
// account id, or nil.
func (s *MemoryStore) FindByAccount(ctx context.Context, providerType, accountID string) (*Record, error) {
	if accountID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		record := s.records[id]
		if record.Type != providerType {
			continue
		}
		if got, ok := record.Metadata["account_id"].(string); ok && got == accountID {
			return copyRecord(record), nil
		}
	}
	return nil, nil
}

// Create inserts a new record, assigning ID and timestamps.
func (s *MemoryStore) Create(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}

	s.records[record.ID] = copyRecord(record)
	s.order = append(s.order, record.ID)
	return nil
}

// UpdateTokens applies a partial token update to an existing record.
func (s *MemoryStore) UpdateTokens(ctx context.Context, id string, update TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}

	record.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		record.RefreshToken = update.RefreshToken
	}
	record.ExpiresAt = update.ExpiresAt
	record.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckHealth always succeeds for the in-memory store.
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}

func copyRecord(record *Record) *Record {
	copied := *record
	copied.Metadata = make(map[string]any, len(record.Metadata))
	for k, v := range record.Metadata {
		copied.Metadata[k] = v
	}
	return &copied
}
