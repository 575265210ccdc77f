package domain

// Milestone multiples tracked for every call.
var Milestones = []float64{2, 3, 5, 10}

// ExtremumRecord holds the post-entry performance of one call entry.
// Corresponds to extremum_records table in PostgreSQL, upserted by entry_id.
type ExtremumRecord struct {
	EntryID string // PK + FK to call_entries
	Mint    string // token mint address

	CurrentPrice     float64  // close of the last observed candle
	CurrentMultiple  float64  // CurrentPrice / EntryPrice
	CurrentMarketCap *float64 // CurrentPrice * supply (nullable)

	ATHPrice     float64  // max post-entry high (>= entry price)
	ATHMultiple  float64  // ATHPrice / EntryPrice (>= 1)
	ATHMarketCap *float64 // ATHPrice * supply (nullable)
	ATHAtMs      int64    // start of the candle holding the ATH (>= entry time)
	TimeToATHMs  int64    // ATHAtMs - EntryTimeMs (>= 0)

	MaxDrawdownPct float64 // percent decline entry -> min low (<= 0)
	MinLowPrice    float64 // min post-entry low
	MinLowAtMs     int64   // start of the candle holding the min low

	TimeTo2xMs  *int64 // first crossing of 2x (nullable)
	TimeTo3xMs  *int64 // first crossing of 3x (nullable)
	TimeTo5xMs  *int64 // first crossing of 5x (nullable)
	TimeTo10xMs *int64 // first crossing of 10x (nullable)

	LastObservedAtMs int64  // start of the last candle used
	Source           Source // provider that supplied the candles
	CandleCount      int    // candles considered after the entry filter
}

// MilestoneTime returns the time-to-multiple field for one of Milestones.
func (r *ExtremumRecord) MilestoneTime(multiple float64) *int64 {
	switch multiple {
	case 2:
		return r.TimeTo2xMs
	case 3:
		return r.TimeTo3xMs
	case 5:
		return r.TimeTo5xMs
	case 10:
		return r.TimeTo10xMs
	}
	return nil
}

// ExtremumSnapshot is an append-only copy of an ExtremumRecord tagged with
// the backfill run that produced it. Corresponds to extremum_snapshots in ClickHouse.
type ExtremumSnapshot struct {
	RunID      string
	ComputedAt int64 // ms
	Record     ExtremumRecord
}
