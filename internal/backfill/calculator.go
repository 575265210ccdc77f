package backfill

import (
	"sort"

	"solana-call-tracker/internal/domain"
)

// ComputeExtremum derives the post-entry performance of entry from candles.
// It is pure: the same inputs always give the same record.
//
// Only candles starting at or after the entry time are used. With none left
// the record is degenerate: ATH equals the entry price at the entry time, no
// drawdown and no milestones.
func ComputeExtremum(entry domain.CallEntry, candles []domain.Candle, source domain.Source) domain.ExtremumRecord {
	post := postEntry(candles, entry.EntryTimeMs)
	if len(post) == 0 || entry.EntryPrice <= 0 {
		return degenerateRecord(entry)
	}

	rec := domain.ExtremumRecord{
		EntryID:     entry.ID,
		Mint:        entry.Mint,
		Source:      source,
		CandleCount: len(post),
	}

	athPrice, athAt := post[0].High, post[0].StartTimeMs
	minLow, minLowAt := post[0].Low, post[0].StartTimeMs
	milestones := make([]*int64, len(domain.Milestones))

	for _, c := range post {
		if c.High > athPrice {
			athPrice, athAt = c.High, c.StartTimeMs
		}
		if c.Low < minLow {
			minLow, minLowAt = c.Low, c.StartTimeMs
		}
		for i, m := range domain.Milestones {
			if milestones[i] == nil && c.High >= entry.EntryPrice*m {
				d := c.StartTimeMs - entry.EntryTimeMs
				milestones[i] = &d
			}
		}
	}

	if athPrice < entry.EntryPrice {
		athPrice, athAt = entry.EntryPrice, entry.EntryTimeMs
	}
	if athAt < entry.EntryTimeMs {
		athAt = entry.EntryTimeMs
	}

	rec.ATHPrice = athPrice
	rec.ATHMultiple = athPrice / entry.EntryPrice
	rec.ATHAtMs = athAt
	rec.TimeToATHMs = max(0, athAt-entry.EntryTimeMs)

	rec.MinLowPrice = minLow
	rec.MinLowAtMs = minLowAt
	if minLow < entry.EntryPrice {
		rec.MaxDrawdownPct = (minLow - entry.EntryPrice) / entry.EntryPrice * 100
	}

	last := post[len(post)-1]
	rec.CurrentPrice = last.Close
	rec.CurrentMultiple = last.Close / entry.EntryPrice
	rec.LastObservedAtMs = last.StartTimeMs

	rec.TimeTo2xMs, rec.TimeTo3xMs, rec.TimeTo5xMs, rec.TimeTo10xMs =
		milestones[0], milestones[1], milestones[2], milestones[3]

	if supply, ok := entry.ResolvedSupply(); ok {
		rec.ATHMarketCap = ptr(rec.ATHPrice * supply)
		rec.CurrentMarketCap = ptr(rec.CurrentPrice * supply)
	}

	return rec
}

func degenerateRecord(entry domain.CallEntry) domain.ExtremumRecord {
	rec := domain.ExtremumRecord{
		EntryID:          entry.ID,
		Mint:             entry.Mint,
		CurrentPrice:     entry.EntryPrice,
		CurrentMultiple:  1,
		ATHPrice:         entry.EntryPrice,
		ATHMultiple:      1,
		ATHAtMs:          entry.EntryTimeMs,
		MinLowPrice:      entry.EntryPrice,
		MinLowAtMs:       entry.EntryTimeMs,
		LastObservedAtMs: entry.EntryTimeMs,
		Source:           domain.SourceNone,
	}
	if supply, ok := entry.ResolvedSupply(); ok {
		rec.ATHMarketCap = ptr(entry.EntryPrice * supply)
		rec.CurrentMarketCap = ptr(entry.EntryPrice * supply)
	}
	return rec
}

// postEntry returns the candles starting at or after entryTimeMs, ascending.
// The input is not modified.
func postEntry(candles []domain.Candle, entryTimeMs int64) []domain.Candle {
	out := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c.StartTimeMs >= entryTimeMs {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTimeMs < out[j].StartTimeMs
	})
	return out
}

func ptr[T any](v T) *T {
	return &v
}
