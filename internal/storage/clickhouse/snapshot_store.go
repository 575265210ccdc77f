package clickhouse

import (
	"context"
	"fmt"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk appends snapshots. Fails entire batch on duplicate (run_id, entry_id).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.ExtremumSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	type key struct {
		runID   string
		entryID string
	}
	seen := make(map[key]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.RunID == "" || snap.Record.EntryID == "" {
			return storage.ErrInvalidInput
		}
		k := key{snap.RunID, snap.Record.EntryID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, snap := range snapshots {
		exists, err := s.exists(ctx, snap.RunID, snap.Record.EntryID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO extremum_snapshots (
			run_id, computed_at, entry_id, mint,
			current_price, current_multiple,
			ath_price, ath_multiple, ath_at_ms, time_to_ath_ms,
			max_drawdown_pct, min_low_price, min_low_at_ms,
			time_to_2x_ms, time_to_3x_ms, time_to_5x_ms, time_to_10x_ms,
			last_observed_at_ms, source, candle_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		r := snap.Record
		err = batch.Append(
			snap.RunID, uint64(snap.ComputedAt), r.EntryID, r.Mint,
			r.CurrentPrice, r.CurrentMultiple,
			r.ATHPrice, r.ATHMultiple, uint64(r.ATHAtMs), uint64(r.TimeToATHMs),
			r.MaxDrawdownPct, r.MinLowPrice, uint64(r.MinLowAtMs),
			toNullableUint(r.TimeTo2xMs), toNullableUint(r.TimeTo3xMs),
			toNullableUint(r.TimeTo5xMs), toNullableUint(r.TimeTo10xMs),
			uint64(r.LastObservedAtMs), string(r.Source), uint32(r.CandleCount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByEntryID retrieves all snapshots of an entry, ordered by computed_at ASC.
func (s *SnapshotStore) GetByEntryID(ctx context.Context, entryID string) ([]*domain.ExtremumSnapshot, error) {
	query := `
		SELECT run_id, computed_at, entry_id, mint,
			current_price, current_multiple,
			ath_price, ath_multiple, ath_at_ms, time_to_ath_ms,
			max_drawdown_pct, min_low_price, min_low_at_ms,
			time_to_2x_ms, time_to_3x_ms, time_to_5x_ms, time_to_10x_ms,
			last_observed_at_ms, source, candle_count
		FROM extremum_snapshots
		WHERE entry_id = ?
		ORDER BY computed_at ASC, run_id ASC
	`

	rows, err := s.conn.Query(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by entry id: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *SnapshotStore) exists(ctx context.Context, runID, entryID string) (bool, error) {
	query := `
		SELECT count(*) FROM extremum_snapshots
		WHERE run_id = ? AND entry_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, entryID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSnapshots(rows chRows) ([]*domain.ExtremumSnapshot, error) {
	var result []*domain.ExtremumSnapshot

	for rows.Next() {
		var snap domain.ExtremumSnapshot
		r := &snap.Record
		var computedAt, athAt, timeToATH, minLowAt, lastObserved uint64
		var to2x, to3x, to5x, to10x *uint64
		var source string
		var candleCount uint32

		err := rows.Scan(
			&snap.RunID, &computedAt, &r.EntryID, &r.Mint,
			&r.CurrentPrice, &r.CurrentMultiple,
			&r.ATHPrice, &r.ATHMultiple, &athAt, &timeToATH,
			&r.MaxDrawdownPct, &r.MinLowPrice, &minLowAt,
			&to2x, &to3x, &to5x, &to10x,
			&lastObserved, &source, &candleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.ComputedAt = int64(computedAt)
		r.ATHAtMs = int64(athAt)
		r.TimeToATHMs = int64(timeToATH)
		r.MinLowAtMs = int64(minLowAt)
		r.TimeTo2xMs = fromNullableUint(to2x)
		r.TimeTo3xMs = fromNullableUint(to3x)
		r.TimeTo5xMs = fromNullableUint(to5x)
		r.TimeTo10xMs = fromNullableUint(to10x)
		r.LastObservedAtMs = int64(lastObserved)
		r.Source = domain.Source(source)
		r.CandleCount = int(candleCount)
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return result, nil
}

func toNullableUint(v *int64) *uint64 {
	if v == nil {
		return nil
	}
	u := uint64(*v)
	return &u
}

func fromNullableUint(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	i := int64(*v)
	return &i
}
