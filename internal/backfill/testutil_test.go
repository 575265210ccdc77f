package backfill

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-call-tracker/internal/domain"
)

const (
	testMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	otherMint = "So11111111111111111111111111111111111111112"
)

var discard = log.New(io.Discard, "", 0)

type fetchCall struct {
	mint    string
	g       domain.Granularity
	sinceMs int64
}

// fakeFetcher serves fixed candles per granularity and records calls.
type fakeFetcher struct {
	mu      sync.Mutex
	candles map[domain.Granularity][]domain.Candle
	source  domain.Source
	calls   []fetchCall
	delay   time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32 // most concurrent FetchCandles calls seen
}

func (f *fakeFetcher) FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) ([]domain.Candle, domain.Source) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for p := f.peak.Load(); n > p && !f.peak.CompareAndSwap(p, n); p = f.peak.Load() {
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{mint: mint, g: g, sinceMs: sinceMs})

	c := f.candles[g]
	if len(c) == 0 {
		return nil, domain.SourceNone
	}
	out := make([]domain.Candle, len(c))
	copy(out, c)
	return out, f.source
}

func (f *fakeFetcher) granularities() []domain.Granularity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Granularity, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.g
	}
	return out
}

func candle(startMs int64, high, low, close float64) domain.Candle {
	return domain.Candle{StartTimeMs: startMs, Open: low, High: high, Low: low, Close: close}
}
