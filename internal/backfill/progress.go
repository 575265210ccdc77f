package backfill

import (
	"sync"
	"time"

	"solana-call-tracker/internal/domain"
)

// emaAlpha weights the latest mint duration in AvgMillisPerMint.
const emaAlpha = 0.2

// Progress owns the live JobState of one controller. All methods are safe
// for concurrent use; Snapshot returns a copy.
type Progress struct {
	mu          sync.Mutex
	state       domain.JobState
	concurrency int
	now         func() time.Time
}

// NewProgress creates an idle tracker.
func NewProgress(now func() time.Time) *Progress {
	if now == nil {
		now = time.Now
	}
	return &Progress{
		state: domain.JobState{Status: domain.JobStatusIdle},
		now:   now,
	}
}

// Reset starts a new run, discarding the previous state.
func (p *Progress) Reset(runID string, concurrency int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nowMs := p.now().UnixMilli()
	p.concurrency = max(1, concurrency)
	p.state = domain.JobState{
		RunID:       runID,
		Status:      domain.JobStatusRunning,
		StartedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}
}

// SetTotals records the size of the run.
func (p *Progress) SetTotals(mints, entries int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.TotalMints = mints
	p.state.TotalEntries = entries
	p.touch()
}

// BeginMint marks mint as the one most recently picked up.
func (p *Progress) BeginMint(mint string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.CurrentMint = mint
	p.touch()
}

// FinishMint folds one unit's result into the counters and updates the
// moving average and ETA.
func (p *Progress) FinishMint(res MintResult, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.state
	s.ProcessedMints++
	s.ProcessedEntries += res.Entries
	s.UpdatedCount += res.Updated
	s.ErrorCount += res.Errors
	s.SkippedCount += res.Skipped

	ms := float64(elapsed.Milliseconds())
	if s.AvgMillisPerMint == 0 {
		s.AvgMillisPerMint = ms
	} else {
		s.AvgMillisPerMint = emaAlpha*ms + (1-emaAlpha)*s.AvgMillisPerMint
	}

	remaining := max(0, s.TotalMints-s.ProcessedMints)
	s.ETAMillis = int64(s.AvgMillisPerMint * float64(remaining) / float64(p.concurrency))
	p.touch()
}

// Finish moves the job to a terminal status.
func (p *Progress) Finish(status domain.JobStatus, lastErr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Status = status
	p.state.CurrentMint = ""
	p.state.ETAMillis = 0
	if lastErr != "" {
		p.state.LastError = lastErr
	}
	p.touch()
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() domain.JobState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Progress) touch() {
	p.state.UpdatedAtMs = p.now().UnixMilli()
}
