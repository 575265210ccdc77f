package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

// seedEntry is the JSON form of a call entry in a seed file.
type seedEntry struct {
	ID             string   `json:"id"`
	Mint           string   `json:"mint"`
	EntryPrice     float64  `json:"entry_price"`
	EntrySupply    *float64 `json:"entry_supply,omitempty"`
	EntryMarketCap *float64 `json:"entry_market_cap,omitempty"`
	EntryTimeMs    int64    `json:"entry_time_ms"`
}

// LoadCallEntries inserts the call entries of a JSON array file into store
// and returns how many were inserted. Entries whose id is already present
// are skipped.
func LoadCallEntries(ctx context.Context, path string, store storage.CallEntryStore) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read call entries: %w", err)
	}

	var rows []seedEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("parse call entries %s: %w", path, err)
	}

	inserted := 0
	for i, r := range rows {
		e := &domain.CallEntry{
			ID:             r.ID,
			Mint:           r.Mint,
			EntryPrice:     r.EntryPrice,
			EntrySupply:    r.EntrySupply,
			EntryMarketCap: r.EntryMarketCap,
			EntryTimeMs:    r.EntryTimeMs,
		}
		err := store.Insert(ctx, e)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			continue
		case err != nil:
			return inserted, fmt.Errorf("insert call entry %d (%q): %w", i, r.ID, err)
		}
		inserted++
	}
	return inserted, nil
}
