package memory

import (
	"context"
	"sort"
	"sync"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// CallEntryStore is an in-memory implementation of storage.CallEntryStore.
// Eligibility filtering consults the paired ExtremumStore, mirroring the
// LEFT JOIN done by the PostgreSQL store.
type CallEntryStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.CallEntry // keyed by id
	extrema *ExtremumStore
}

// NewCallEntryStore creates a new in-memory call entry store.
// extrema may be nil, in which case no entry is considered already computed.
func NewCallEntryStore(extrema *ExtremumStore) *CallEntryStore {
	return &CallEntryStore{
		data:    make(map[string]*domain.CallEntry),
		extrema: extrema,
	}
}

// Insert adds a new call entry. Returns ErrDuplicateKey if id exists.
func (s *CallEntryStore) Insert(_ context.Context, e *domain.CallEntry) error {
	if e == nil || e.ID == "" || e.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.data[e.ID] = &entryCopy
	return nil
}

// ListEligible retrieves entries with a positive price, optionally skipping
// entries whose stored record already shows a gain.
func (s *CallEntryStore) ListEligible(ctx context.Context, force bool) ([]*domain.CallEntry, error) {
	s.mu.RLock()
	candidates := make([]*domain.CallEntry, 0, len(s.data))
	for _, e := range s.data {
		if e.EntryPrice <= 0 {
			continue
		}
		entryCopy := *e
		candidates = append(candidates, &entryCopy)
	}
	s.mu.RUnlock()

	result := candidates
	if !force && s.extrema != nil {
		result = candidates[:0]
		for _, e := range candidates {
			r, err := s.extrema.GetByEntryID(ctx, e.ID)
			if err == nil && r.ATHMultiple > 1 {
				continue
			}
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Mint != result[j].Mint {
			return result[i].Mint < result[j].Mint
		}
		if result[i].EntryTimeMs != result[j].EntryTimeMs {
			return result[i].EntryTimeMs < result[j].EntryTimeMs
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.CallEntryStore = (*CallEntryStore)(nil)
