package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/solana"
	"solana-call-tracker/internal/storage"
	"solana-call-tracker/internal/storage/memory"
)

// flakyExtremumStore fails Upsert for the listed entry ids.
type flakyExtremumStore struct {
	*memory.ExtremumStore
	fail map[string]bool
}

func (s *flakyExtremumStore) Upsert(ctx context.Context, r *domain.ExtremumRecord) error {
	if s.fail[r.EntryID] {
		return errors.New("connection reset")
	}
	return s.ExtremumStore.Upsert(ctx, r)
}

type fakeSupply struct {
	mu    sync.Mutex
	calls int
	ui    float64
	err   error
}

func (f *fakeSupply) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &solana.TokenSupply{UIAmount: f.ui}, nil
}

var processorNow = time.UnixMilli(20 * dayMs)

func newTestProcessor(f CandleFetcher, extrema storage.ExtremumStore, opts ProcessorOptions) *Processor {
	opts.Assembler = NewAssembler(f)
	opts.Extrema = extrema
	opts.Logger = discard
	opts.Now = func() time.Time { return processorNow }
	return NewProcessor(opts)
}

func hourSeries(fromMs int64, highs ...float64) []domain.Candle {
	out := make([]domain.Candle, len(highs))
	for i, h := range highs {
		out[i] = candle(fromMs+int64(i)*hourMs, h, h/2, h)
	}
	return out
}

func TestProcessor_ComputesEveryEntry(t *testing.T) {
	t0 := 19 * dayMs
	f := &fakeFetcher{
		source: domain.SourceGeckoTerminal,
		candles: map[domain.Granularity][]domain.Candle{
			domain.GranularityHour: hourSeries(t0, 1, 3, 2, 6, 4),
		},
	}
	extrema := memory.NewExtremumStore()
	p := newTestProcessor(f, extrema, ProcessorOptions{})

	unit := domain.MintWorkUnit{
		Mint: testMint,
		Entries: []domain.CallEntry{
			{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
			{ID: "b", Mint: testMint, EntryPrice: 2, EntryTimeMs: t0 + 2*hourMs},
		},
		EarliestEntryTimeMs: t0,
	}

	res := p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, MintResult{
		Mint: testMint, Entries: 2, Updated: 2,
		Source: domain.SourceGeckoTerminal, CandleCount: 5,
	}, res)

	// The candle series is fetched once for the whole unit.
	assert.Equal(t, []domain.Granularity{domain.GranularityMinute, domain.GranularityHour}, f.granularities())

	a, err := extrema.GetByEntryID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 6.0, a.ATHMultiple)

	b, err := extrema.GetByEntryID(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 3.0, b.ATHMultiple)
	assert.Equal(t, hourMs, b.TimeToATHMs)
}

func TestProcessor_NoDataIsUpdatedNotSkipped(t *testing.T) {
	extrema := memory.NewExtremumStore()
	p := newTestProcessor(&fakeFetcher{}, extrema, ProcessorOptions{})

	unit := domain.MintWorkUnit{
		Mint:                testMint,
		Entries:             []domain.CallEntry{{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: 10 * dayMs}},
		EarliestEntryTimeMs: 10 * dayMs,
	}

	res := p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, domain.SourceNone, res.Source)

	rec, err := extrema.GetByEntryID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.ATHMultiple)
}

func TestProcessor_InvalidMintRecordedWithoutCandles(t *testing.T) {
	f := &fakeFetcher{}
	extrema := memory.NewExtremumStore()
	p := newTestProcessor(f, extrema, ProcessorOptions{})

	unit := domain.MintWorkUnit{
		Mint: "0xdeadbeef",
		Entries: []domain.CallEntry{
			{ID: "a", Mint: "0xdeadbeef", EntryPrice: 1, EntryTimeMs: 5 * dayMs},
			{ID: "b", Mint: "0xdeadbeef", EntryPrice: 0},
		},
	}

	res := p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped, "zero entry price is still skipped")
	assert.Equal(t, domain.SourceNone, res.Source)
	assert.Empty(t, f.calls, "providers are not contacted")
	assert.Equal(t, 1, extrema.Len())

	rec, err := extrema.GetByEntryID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceNone, rec.Source)
	assert.Equal(t, 1.0, rec.ATHMultiple)
	assert.Equal(t, 0, rec.CandleCount)
}

func TestProcessor_PersistFailureIsCounted(t *testing.T) {
	t0 := 19 * dayMs
	f := &fakeFetcher{
		source:  domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{domain.GranularityHour: hourSeries(t0, 2)},
	}
	extrema := &flakyExtremumStore{ExtremumStore: memory.NewExtremumStore(), fail: map[string]bool{"b": true}}
	snapshots := memory.NewSnapshotStore()
	p := newTestProcessor(f, extrema, ProcessorOptions{Snapshots: snapshots})

	unit := domain.MintWorkUnit{
		Mint: testMint,
		Entries: []domain.CallEntry{
			{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
			{ID: "b", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
			{ID: "c", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
		},
		EarliestEntryTimeMs: t0,
	}

	res := p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 2, extrema.Len())

	ctx := context.Background()
	for id, want := range map[string]int{"a": 1, "b": 0, "c": 1} {
		snaps, err := snapshots.GetByEntryID(ctx, id)
		require.NoError(t, err)
		assert.Len(t, snaps, want, "snapshots of %s", id)
	}
}

func TestProcessor_SupplyLookup(t *testing.T) {
	t0 := 19 * dayMs
	f := &fakeFetcher{
		source:  domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{domain.GranularityHour: hourSeries(t0, 4)},
	}
	extrema := memory.NewExtremumStore()
	supply := &fakeSupply{ui: 1000}
	p := newTestProcessor(f, extrema, ProcessorOptions{Supply: supply})

	known := 10.0
	unit := domain.MintWorkUnit{
		Mint: testMint,
		Entries: []domain.CallEntry{
			{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
			{ID: "b", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0},
			{ID: "c", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0, EntrySupply: &known},
		},
		EarliestEntryTimeMs: t0,
	}

	p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, 1, supply.calls, "one lookup per mint")

	ctx := context.Background()
	a, err := extrema.GetByEntryID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.ATHMarketCap)
	assert.Equal(t, 4000.0, *a.ATHMarketCap)

	c, err := extrema.GetByEntryID(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, c.ATHMarketCap)
	assert.Equal(t, 40.0, *c.ATHMarketCap, "entry supply is kept")

	assert.Nil(t, unit.Entries[0].EntrySupply, "input entries are not modified")
}

func TestProcessor_SupplyFailureLeavesCapUnknown(t *testing.T) {
	t0 := 19 * dayMs
	f := &fakeFetcher{
		source:  domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{domain.GranularityHour: hourSeries(t0, 4)},
	}
	extrema := memory.NewExtremumStore()
	p := newTestProcessor(f, extrema, ProcessorOptions{Supply: &fakeSupply{err: errors.New("rpc down")}})

	unit := domain.MintWorkUnit{
		Mint:                testMint,
		Entries:             []domain.CallEntry{{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0}},
		EarliestEntryTimeMs: t0,
	}

	res := p.Process(context.Background(), "run-1", unit)
	assert.Equal(t, 1, res.Updated)

	a, err := extrema.GetByEntryID(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, a.ATHMarketCap)
}

func TestProcessor_Idempotent(t *testing.T) {
	t0 := 19 * dayMs
	f := &fakeFetcher{
		source:  domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{domain.GranularityHour: hourSeries(t0, 1, 5, 3)},
	}
	extrema := memory.NewExtremumStore()
	p := newTestProcessor(f, extrema, ProcessorOptions{})

	unit := domain.MintWorkUnit{
		Mint:                testMint,
		Entries:             []domain.CallEntry{{ID: "a", Mint: testMint, EntryPrice: 1, EntryTimeMs: t0}},
		EarliestEntryTimeMs: t0,
	}

	ctx := context.Background()
	p.Process(ctx, "run-1", unit)
	first, err := extrema.GetByEntryID(ctx, "a")
	require.NoError(t, err)

	p.Process(ctx, "run-2", unit)
	second, err := extrema.GetByEntryID(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, extrema.Len())
}
