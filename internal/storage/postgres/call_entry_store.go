package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// CallEntryStore implements storage.CallEntryStore using PostgreSQL.
type CallEntryStore struct {
	pool *Pool
}

// NewCallEntryStore creates a new CallEntryStore.
func NewCallEntryStore(pool *Pool) *CallEntryStore {
	return &CallEntryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CallEntryStore = (*CallEntryStore)(nil)

// Insert adds a new call entry. Returns ErrDuplicateKey if id exists.
func (s *CallEntryStore) Insert(ctx context.Context, e *domain.CallEntry) (err error) {
	if e == nil || e.ID == "" || e.Mint == "" {
		return storage.ErrInvalidInput
	}
	finish := timeQuery("insert_call_entry")
	defer func() { finish(err) }()

	query := `
		INSERT INTO call_entries (
			id, mint, entry_price, entry_supply, entry_market_cap, entry_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		e.ID,
		e.Mint,
		e.EntryPrice,
		e.EntrySupply,
		e.EntryMarketCap,
		e.EntryTimeMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert call entry: %w", err)
	}
	return nil
}

// ListEligible retrieves entries with a positive price. Unless force is set,
// entries whose record already shows ath_multiple > 1 are excluded.
func (s *CallEntryStore) ListEligible(ctx context.Context, force bool) (_ []*domain.CallEntry, err error) {
	finish := timeQuery("list_eligible_call_entries")
	defer func() { finish(err) }()

	query := `
		SELECT c.id, c.mint, c.entry_price, c.entry_supply, c.entry_market_cap, c.entry_time_ms
		FROM call_entries c
		LEFT JOIN extremum_records r ON r.entry_id = c.id
		WHERE c.entry_price > 0
		  AND ($1 OR r.entry_id IS NULL OR r.ath_multiple <= 1)
		ORDER BY c.mint ASC, c.entry_time_ms ASC, c.id ASC
	`

	rows, err := s.pool.Query(ctx, query, force)
	if err != nil {
		return nil, fmt.Errorf("query eligible call entries: %w", err)
	}
	defer rows.Close()

	var result []*domain.CallEntry
	for rows.Next() {
		e, err := scanCallEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call entries: %w", err)
	}
	return result, nil
}

func scanCallEntry(row pgx.Row) (*domain.CallEntry, error) {
	var e domain.CallEntry
	err := row.Scan(
		&e.ID,
		&e.Mint,
		&e.EntryPrice,
		&e.EntrySupply,
		&e.EntryMarketCap,
		&e.EntryTimeMs,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
