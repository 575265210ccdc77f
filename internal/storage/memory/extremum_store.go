package memory

import (
	"context"
	"sync"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// ExtremumStore is an in-memory implementation of storage.ExtremumStore.
type ExtremumStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExtremumRecord // keyed by entry_id
}

// NewExtremumStore creates a new in-memory extremum store.
func NewExtremumStore() *ExtremumStore {
	return &ExtremumStore{
		data: make(map[string]*domain.ExtremumRecord),
	}
}

// Upsert inserts or overwrites the record keyed by entry_id.
func (s *ExtremumStore) Upsert(_ context.Context, r *domain.ExtremumRecord) error {
	if r == nil || r.EntryID == "" || !r.Source.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *r
	s.data[r.EntryID] = &recordCopy
	return nil
}

// GetByEntryID retrieves a record by entry ID. Returns ErrNotFound if not exists.
func (s *ExtremumStore) GetByEntryID(_ context.Context, entryID string) (*domain.ExtremumRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[entryID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// Len returns the number of stored records.
func (s *ExtremumStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.ExtremumStore = (*ExtremumStore)(nil)
