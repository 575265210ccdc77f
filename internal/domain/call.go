package domain

// CallEntry is a single recorded call of a token in a chat channel.
// Corresponds to call_entries table in PostgreSQL. Read-only for the backfill.
type CallEntry struct {
	ID             string   // PRIMARY KEY
	Mint           string   // token mint address
	EntryPrice     float64  // USD price at call time (> 0)
	EntrySupply    *float64 // token supply at call time (nullable)
	EntryMarketCap *float64 // market cap at call time (nullable)
	EntryTimeMs    int64    // call timestamp (ms)
}

// ResolvedSupply returns the entry supply, falling back to market cap / price.
func (c *CallEntry) ResolvedSupply() (float64, bool) {
	if c.EntrySupply != nil && *c.EntrySupply > 0 {
		return *c.EntrySupply, true
	}
	if c.EntryMarketCap != nil && *c.EntryMarketCap > 0 && c.EntryPrice > 0 {
		return *c.EntryMarketCap / c.EntryPrice, true
	}
	return 0, false
}

// MintWorkUnit groups all call entries that share one mint so the candle
// series is fetched once per token.
type MintWorkUnit struct {
	Mint                string
	Entries             []CallEntry
	EarliestEntryTimeMs int64
}
