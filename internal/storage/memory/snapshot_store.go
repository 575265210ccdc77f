package memory

import (
	"context"
	"sort"
	"sync"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.ExtremumSnapshot
	keys map[snapshotKey]struct{}
}

type snapshotKey struct {
	runID   string
	entryID string
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		keys: make(map[snapshotKey]struct{}),
	}
}

// InsertBulk appends snapshots. Fails entire batch on duplicate (run_id, entry_id).
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.ExtremumSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[snapshotKey]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.RunID == "" || snap.Record.EntryID == "" {
			return storage.ErrInvalidInput
		}
		k := snapshotKey{snap.RunID, snap.Record.EntryID}
		if _, exists := s.keys[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, snap := range snapshots {
		snapCopy := *snap
		s.data = append(s.data, &snapCopy)
		s.keys[snapshotKey{snap.RunID, snap.Record.EntryID}] = struct{}{}
	}
	return nil
}

// GetByEntryID retrieves all snapshots of an entry, ordered by computed_at ASC.
func (s *SnapshotStore) GetByEntryID(_ context.Context, entryID string) ([]*domain.ExtremumSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExtremumSnapshot
	for _, snap := range s.data {
		if snap.Record.EntryID == entryID {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ComputedAt < result[j].ComputedAt
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
