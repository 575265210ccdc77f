package backfill

import (
	"sync"

	"solana-call-tracker/internal/domain"
)

// Queue is a FIFO of work units shared by the workers.
type Queue struct {
	mu    sync.Mutex
	units []domain.MintWorkUnit
	head  int
}

// NewQueue creates a queue holding units in order.
func NewQueue(units []domain.MintWorkUnit) *Queue {
	return &Queue{units: units}
}

// Pop removes and returns the next unit. ok is false when the queue is empty.
func (q *Queue) Pop() (unit domain.MintWorkUnit, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.units) {
		return domain.MintWorkUnit{}, false
	}
	unit = q.units[q.head]
	q.units[q.head] = domain.MintWorkUnit{}
	q.head++
	return unit, true
}

// Len returns the number of units left.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units) - q.head
}

// GroupByMint groups entries into work units, one per mint, in order of
// first appearance. Entries keep their input order within a unit.
func GroupByMint(entries []*domain.CallEntry) []domain.MintWorkUnit {
	index := make(map[string]int)
	var units []domain.MintWorkUnit

	for _, e := range entries {
		if e == nil {
			continue
		}
		i, ok := index[e.Mint]
		if !ok {
			i = len(units)
			index[e.Mint] = i
			units = append(units, domain.MintWorkUnit{
				Mint:                e.Mint,
				EarliestEntryTimeMs: e.EntryTimeMs,
			})
		}

		u := &units[i]
		u.Entries = append(u.Entries, *e)
		if e.EntryTimeMs < u.EarliestEntryTimeMs {
			u.EarliestEntryTimeMs = e.EntryTimeMs
		}
	}
	return units
}
