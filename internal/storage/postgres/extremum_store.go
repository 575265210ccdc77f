package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// ExtremumStore implements storage.ExtremumStore using PostgreSQL.
type ExtremumStore struct {
	pool *Pool
}

// NewExtremumStore creates a new ExtremumStore.
func NewExtremumStore(pool *Pool) *ExtremumStore {
	return &ExtremumStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExtremumStore = (*ExtremumStore)(nil)

// Upsert inserts or overwrites the record keyed by entry_id.
// Returns ErrInvalidInput if the entry does not exist or a check constraint fails.
func (s *ExtremumStore) Upsert(ctx context.Context, r *domain.ExtremumRecord) (err error) {
	if r == nil || r.EntryID == "" || !r.Source.IsValid() {
		return storage.ErrInvalidInput
	}
	finish := timeQuery("upsert_extremum_record")
	defer func() { finish(err) }()

	query := `
		INSERT INTO extremum_records (
			entry_id, mint,
			current_price, current_multiple, current_market_cap,
			ath_price, ath_multiple, ath_market_cap, ath_at_ms, time_to_ath_ms,
			max_drawdown_pct, min_low_price, min_low_at_ms,
			time_to_2x_ms, time_to_3x_ms, time_to_5x_ms, time_to_10x_ms,
			last_observed_at_ms, source, candle_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (entry_id) DO UPDATE SET
			mint = EXCLUDED.mint,
			current_price = EXCLUDED.current_price,
			current_multiple = EXCLUDED.current_multiple,
			current_market_cap = EXCLUDED.current_market_cap,
			ath_price = EXCLUDED.ath_price,
			ath_multiple = EXCLUDED.ath_multiple,
			ath_market_cap = EXCLUDED.ath_market_cap,
			ath_at_ms = EXCLUDED.ath_at_ms,
			time_to_ath_ms = EXCLUDED.time_to_ath_ms,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			min_low_price = EXCLUDED.min_low_price,
			min_low_at_ms = EXCLUDED.min_low_at_ms,
			time_to_2x_ms = EXCLUDED.time_to_2x_ms,
			time_to_3x_ms = EXCLUDED.time_to_3x_ms,
			time_to_5x_ms = EXCLUDED.time_to_5x_ms,
			time_to_10x_ms = EXCLUDED.time_to_10x_ms,
			last_observed_at_ms = EXCLUDED.last_observed_at_ms,
			source = EXCLUDED.source,
			candle_count = EXCLUDED.candle_count,
			updated_at = (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
	`

	_, err = s.pool.Exec(ctx, query,
		r.EntryID,
		r.Mint,
		r.CurrentPrice,
		r.CurrentMultiple,
		r.CurrentMarketCap,
		r.ATHPrice,
		r.ATHMultiple,
		r.ATHMarketCap,
		r.ATHAtMs,
		r.TimeToATHMs,
		r.MaxDrawdownPct,
		r.MinLowPrice,
		r.MinLowAtMs,
		r.TimeTo2xMs,
		r.TimeTo3xMs,
		r.TimeTo5xMs,
		r.TimeTo10xMs,
		r.LastObservedAtMs,
		string(r.Source),
		r.CandleCount,
	)
	if err != nil {
		if isInvalidInputError(err) {
			return fmt.Errorf("upsert extremum record %s: %w", r.EntryID, storage.ErrInvalidInput)
		}
		return fmt.Errorf("upsert extremum record: %w", err)
	}
	return nil
}

// GetByEntryID retrieves a record by entry ID. Returns ErrNotFound if not exists.
func (s *ExtremumStore) GetByEntryID(ctx context.Context, entryID string) (*domain.ExtremumRecord, error) {
	query := `
		SELECT entry_id, mint,
			current_price, current_multiple, current_market_cap,
			ath_price, ath_multiple, ath_market_cap, ath_at_ms, time_to_ath_ms,
			max_drawdown_pct, min_low_price, min_low_at_ms,
			time_to_2x_ms, time_to_3x_ms, time_to_5x_ms, time_to_10x_ms,
			last_observed_at_ms, source, candle_count
		FROM extremum_records
		WHERE entry_id = $1
	`

	row := s.pool.QueryRow(ctx, query, entryID)
	r, err := scanExtremumRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get extremum record: %w", err)
	}
	return r, nil
}

func scanExtremumRecord(row pgx.Row) (*domain.ExtremumRecord, error) {
	var r domain.ExtremumRecord
	var source string

	err := row.Scan(
		&r.EntryID,
		&r.Mint,
		&r.CurrentPrice,
		&r.CurrentMultiple,
		&r.CurrentMarketCap,
		&r.ATHPrice,
		&r.ATHMultiple,
		&r.ATHMarketCap,
		&r.ATHAtMs,
		&r.TimeToATHMs,
		&r.MaxDrawdownPct,
		&r.MinLowPrice,
		&r.MinLowAtMs,
		&r.TimeTo2xMs,
		&r.TimeTo3xMs,
		&r.TimeTo5xMs,
		&r.TimeTo10xMs,
		&r.LastObservedAtMs,
		&source,
		&r.CandleCount,
	)
	if err != nil {
		return nil, err
	}

	r.Source = domain.Source(source)
	if !r.Source.IsValid() {
		return nil, fmt.Errorf("entry %s: unknown source %q", r.EntryID, source)
	}
	return &r, nil
}
