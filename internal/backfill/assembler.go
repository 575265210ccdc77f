// Package backfill reconstructs post-entry price history for recorded calls
// and derives their extremum records.
//
// Flow: eligible entries → mint work units → tiered candle assembly →
// extremum calculation → upsert, driven by a bounded worker pool.
package backfill

import (
	"context"
	"sort"
	"time"

	"solana-call-tracker/internal/domain"
)

const (
	hourMs   = int64(time.Hour / time.Millisecond)
	dayMs    = 24 * hourMs
	minuteMs = int64(time.Minute / time.Millisecond)

	// minuteTierMaxGapMs is the largest entry → next hour gap covered by minute candles.
	minuteTierMaxGapMs = 60 * minuteMs
	// dayTierMinAgeMs is the token age above which day candles are added.
	dayTierMinAgeMs = 2 * dayMs
)

// CandleFetcher returns the first available candle series for a mint.
// *marketdata.Chain implements it.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) ([]domain.Candle, domain.Source)
}

// Assembler builds one deduplicated, ascending candle series per mint,
// using minute candles up to the first hour boundary after entry, hour
// candles after it and day candles for older history.
type Assembler struct {
	fetcher CandleFetcher
}

// NewAssembler creates an Assembler over fetcher.
func NewAssembler(fetcher CandleFetcher) *Assembler {
	return &Assembler{fetcher: fetcher}
}

// Assemble returns the candle series for mint since entryTimeMs and the
// source of the finest tier that had data. With no data it returns nil and
// SourceNone.
func (a *Assembler) Assemble(ctx context.Context, mint string, entryTimeMs, nowMs int64) ([]domain.Candle, domain.Source) {
	nextHour := ceilTo(entryTimeMs, hourMs)
	nextDay := ceilTo(nextHour, dayMs)

	var merged []domain.Candle
	source := domain.SourceNone

	add := func(g domain.Granularity, sinceMs int64) {
		candles, src := a.fetcher.FetchCandles(ctx, mint, g, sinceMs)
		kept := 0
		for _, c := range candles {
			if c.StartTimeMs < sinceMs {
				continue
			}
			c.Granularity = g
			merged = append(merged, c)
			kept++
		}
		if kept > 0 && source == domain.SourceNone {
			source = src
		}
	}

	if nextHour < nowMs && nextHour-entryTimeMs <= minuteTierMaxGapMs {
		add(domain.GranularityMinute, entryTimeMs)
	}
	if nextHour < nowMs {
		add(domain.GranularityHour, nextHour)
	}
	if nowMs-entryTimeMs > dayTierMinAgeMs {
		add(domain.GranularityDay, nextDay)
	}

	return dedupeByMinute(merged), source
}

// dedupeByMinute keys candles by start time rounded to the nearest minute.
// A later candle replaces an earlier one with the same key. The result is
// ascending.
func dedupeByMinute(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	byKey := make(map[int64]domain.Candle, len(candles))
	for _, c := range candles {
		byKey[roundToMinute(c.StartTimeMs)] = c
	}

	out := make([]domain.Candle, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTimeMs < out[j].StartTimeMs
	})
	return out
}

func roundToMinute(ms int64) int64 {
	return ((ms + minuteMs/2) / minuteMs) * minuteMs
}

// ceilTo rounds ms up to the next multiple of unit. Exact multiples are kept.
func ceilTo(ms, unit int64) int64 {
	if r := ms % unit; r != 0 {
		return ms + unit - r
	}
	return ms
}
