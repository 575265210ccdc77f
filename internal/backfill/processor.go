package backfill

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/observability"
	"solana-call-tracker/internal/solana"
	"solana-call-tracker/internal/storage"
)

// MintResult is the outcome of processing one MintWorkUnit.
type MintResult struct {
	Mint        string
	Entries     int // entries in the unit
	Updated     int // records persisted
	Errors      int // records that failed to persist
	Skipped     int // entries not computed
	Source      domain.Source
	CandleCount int // candles in the assembled series
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Assembler *Assembler
	Extrema   storage.ExtremumStore

	// Snapshots receives a copy of every persisted record. Optional.
	Snapshots storage.SnapshotStore
	// Supply looks up current token supply for entries that carry neither
	// supply nor market cap. Optional.
	Supply solana.SupplyClient

	Tracer trace.Tracer
	Logger *log.Logger
	Debug  bool
	Now    func() time.Time
}

// Processor runs the per-mint pipeline: assemble candles once, compute a
// record per entry and upsert each record.
type Processor struct {
	assembler *Assembler
	extrema   storage.ExtremumStore
	snapshots storage.SnapshotStore
	supply    solana.SupplyClient
	tracer    trace.Tracer
	logger    *log.Logger
	debug     bool
	now       func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	p := &Processor{
		assembler: opts.Assembler,
		extrema:   opts.Extrema,
		snapshots: opts.Snapshots,
		supply:    opts.Supply,
		tracer:    opts.Tracer,
		logger:    opts.Logger,
		debug:     opts.Debug,
		now:       opts.Now,
	}
	if p.tracer == nil {
		p.tracer = observability.Tracer()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Process handles one unit. It never fails as a whole: persistence errors
// are counted per entry and the remaining entries still run.
func (p *Processor) Process(ctx context.Context, runID string, unit domain.MintWorkUnit) MintResult {
	ctx, span := p.tracer.Start(ctx, "backfill.process-mint", trace.WithAttributes(
		attribute.String("mint", unit.Mint),
		attribute.Int("entries", len(unit.Entries)),
	))
	defer span.End()

	res := MintResult{Mint: unit.Mint, Entries: len(unit.Entries), Source: domain.SourceNone}

	nowMs := p.now().UnixMilli()

	// A mint that is not a solana address has no market data anywhere; its
	// entries still get degenerate records.
	var candles []domain.Candle
	source := domain.SourceNone
	entries := unit.Entries
	if solana.IsValidAddress(unit.Mint) {
		candles, source = p.assembler.Assemble(ctx, unit.Mint, unit.EarliestEntryTimeMs, nowMs)
		entries = p.withSupply(ctx, unit)
	} else {
		p.debugf("%q is not a solana address, recording without candles", unit.Mint)
	}
	res.Source = source
	res.CandleCount = len(candles)
	span.SetAttributes(
		attribute.String("source", source.String()),
		attribute.Int("candles", len(candles)),
	)

	var persisted []*domain.ExtremumSnapshot
	for _, entry := range entries {
		if entry.EntryPrice <= 0 {
			res.Skipped++
			continue
		}

		rec := ComputeExtremum(entry, candles, source)
		res.Updated++
		if err := p.extrema.Upsert(ctx, &rec); err != nil {
			res.Updated--
			res.Errors++
			p.logger.Printf("[backfill] upsert %s (mint %s): %v", entry.ID, unit.Mint, err)
			continue
		}
		persisted = append(persisted, &domain.ExtremumSnapshot{
			RunID:      runID,
			ComputedAt: nowMs,
			Record:     rec,
		})
	}

	if p.snapshots != nil && len(persisted) > 0 && runID != "" {
		if err := p.snapshots.InsertBulk(ctx, persisted); err != nil {
			p.logger.Printf("[backfill] snapshot %s: %v", unit.Mint, err)
		}
	}

	return res
}

// withSupply fills EntrySupply from the chain for entries that cannot
// resolve a supply themselves. The lookup runs at most once per mint and a
// failure leaves the entries unchanged.
func (p *Processor) withSupply(ctx context.Context, unit domain.MintWorkUnit) []domain.CallEntry {
	if p.supply == nil {
		return unit.Entries
	}

	missing := false
	for i := range unit.Entries {
		if _, ok := unit.Entries[i].ResolvedSupply(); !ok {
			missing = true
			break
		}
	}
	if !missing {
		return unit.Entries
	}

	supply, err := p.supply.GetTokenSupply(ctx, unit.Mint)
	if err != nil || supply.UIAmount <= 0 {
		p.debugf("supply %s unavailable: %v", unit.Mint, err)
		return unit.Entries
	}

	out := make([]domain.CallEntry, len(unit.Entries))
	copy(out, unit.Entries)
	for i := range out {
		if _, ok := out[i].ResolvedSupply(); !ok {
			out[i].EntrySupply = ptr(supply.UIAmount)
		}
	}
	return out
}

func (p *Processor) debugf(format string, args ...interface{}) {
	if p.debug {
		p.logger.Printf("[backfill] "+format, args...)
	}
}
