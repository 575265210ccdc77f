package storage

import (
	"context"

	"solana-call-tracker/internal/domain"
)

// CallEntryStore provides access to call_entries storage.
type CallEntryStore interface {
	// Insert adds a new call entry. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, e *domain.CallEntry) error

	// ListEligible retrieves call entries with a positive entry price, ordered by
	// mint ASC, entry time ASC, id ASC. Unless force is set, entries that already
	// have an extremum record with ath_multiple > 1 are excluded.
	ListEligible(ctx context.Context, force bool) ([]*domain.CallEntry, error)
}

// ExtremumStore provides access to extremum_records storage.
type ExtremumStore interface {
	// Upsert inserts or overwrites the record keyed by entry_id.
	Upsert(ctx context.Context, r *domain.ExtremumRecord) error

	// GetByEntryID retrieves a record by entry ID. Returns ErrNotFound if not exists.
	GetByEntryID(ctx context.Context, entryID string) (*domain.ExtremumRecord, error)
}

// SnapshotStore provides append-only access to extremum_snapshots storage.
type SnapshotStore interface {
	// InsertBulk appends snapshots. Fails entire batch on duplicate (run_id, entry_id).
	InsertBulk(ctx context.Context, snapshots []*domain.ExtremumSnapshot) error

	// GetByEntryID retrieves all snapshots of an entry, ordered by computed_at ASC.
	GetByEntryID(ctx context.Context, entryID string) ([]*domain.ExtremumSnapshot, error)
}
