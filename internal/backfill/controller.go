package backfill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/observability"
	"solana-call-tracker/internal/storage"
)

// Controller defaults.
const (
	DefaultConcurrency    = 10
	DefaultInterMintDelay = 250 * time.Millisecond
	DefaultMaxConcurrency = 32
)

// ErrAlreadyRunning is returned by Start while a job is running.
var ErrAlreadyRunning = errors.New("backfill already running")

// Options are the per-run job parameters.
type Options struct {
	Concurrency  int  // workers; <= 0 uses the controller default
	ForceRefresh bool // recompute entries that already have a gain recorded
}

// RunCache holds state that is only valid for one run. Every registered
// cache is reset when a job starts.
type RunCache interface {
	ResetRun()
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Entries   storage.CallEntryStore
	Processor *Processor

	DefaultConcurrency int
	// MaxConcurrency caps the workers of a run, whatever the caller asks for.
	// Storage pools are sized from it.
	MaxConcurrency int
	// InterMintDelay is slept by a worker after each unit. Negative disables.
	InterMintDelay time.Duration

	RunCaches []RunCache

	Logger *log.Logger
	Now    func() time.Time
}

// Controller runs at most one backfill job at a time and exposes its
// lifecycle: Start, Stop, Progress and Wait.
//
// Status moves idle → running → complete | paused | error. paused is only
// reached through Stop, error only when the eligible entries cannot be read.
type Controller struct {
	entries            storage.CallEntryStore
	processor          *Processor
	defaultConcurrency int
	maxConcurrency     int
	delay              time.Duration
	logger             *log.Logger
	now                func() time.Time
	runCaches          []RunCache

	progress *Progress

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	done    chan struct{}
}

// NewController creates an idle controller.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		entries:            opts.Entries,
		processor:          opts.Processor,
		defaultConcurrency: opts.DefaultConcurrency,
		maxConcurrency:     opts.MaxConcurrency,
		delay:              opts.InterMintDelay,
		logger:             opts.Logger,
		now:                opts.Now,
		runCaches:          opts.RunCaches,
	}
	if c.defaultConcurrency <= 0 {
		c.defaultConcurrency = DefaultConcurrency
	}
	if c.maxConcurrency <= 0 {
		c.maxConcurrency = DefaultMaxConcurrency
	}
	switch {
	case c.delay == 0:
		c.delay = DefaultInterMintDelay
	case c.delay < 0:
		c.delay = 0
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.progress = NewProgress(c.now)
	return c
}

// Start launches a job in the background and returns its run id. The job
// outlives ctx cancellation; use Stop to end it. While a job is running
// Start does nothing and returns ErrAlreadyRunning.
func (c *Controller) Start(ctx context.Context, opts Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Printf("[backfill] Start ignored: job %s already running", c.progress.Snapshot().RunID)
		return "", ErrAlreadyRunning
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.defaultConcurrency
	}
	if concurrency > c.maxConcurrency {
		c.logger.Printf("[backfill] Concurrency %d capped at %d", concurrency, c.maxConcurrency)
		concurrency = c.maxConcurrency
	}

	for _, rc := range c.runCaches {
		rc.ResetRun()
	}

	runID := uuid.NewString()
	c.progress.Reset(runID, concurrency)

	runCtx := context.WithoutCancel(ctx)
	stopCtx, stop := context.WithCancel(runCtx)

	c.running = true
	c.stop = stop
	c.done = make(chan struct{})

	observability.RecordJobStarted()
	c.logger.Printf("[backfill] Run %s started (concurrency=%d, force_refresh=%t)", runID, concurrency, opts.ForceRefresh)

	go c.run(runCtx, stopCtx, runID, concurrency, opts.ForceRefresh, c.done)
	return runID, nil
}

// Stop asks the running job to stop. Units already picked up by workers
// finish; no new unit is started. It reports whether a job was running.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return false
	}
	c.stop()
	c.logger.Printf("[backfill] Stop requested for run %s", c.progress.Snapshot().RunID)
	return true
}

// Progress returns a snapshot of the current or last job.
func (c *Controller) Progress() domain.JobState {
	return c.progress.Snapshot()
}

// Running reports whether a job is in progress.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Wait blocks until the current job, if any, has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(runCtx, stopCtx context.Context, runID string, concurrency int, force bool, done chan struct{}) {
	status := domain.JobStatusComplete
	var lastErr string

	defer func() {
		c.progress.Finish(status, lastErr)
		observability.RecordJobFinished(string(status))
		observability.UpdateQueueDepth(0)

		s := c.progress.Snapshot()
		c.logger.Printf("[backfill] Run %s %s: mints=%d/%d entries=%d/%d updated=%d errors=%d skipped=%d",
			runID, status, s.ProcessedMints, s.TotalMints, s.ProcessedEntries, s.TotalEntries,
			s.UpdatedCount, s.ErrorCount, s.SkippedCount)

		c.mu.Lock()
		c.running = false
		c.stop()
		c.mu.Unlock()
		close(done)
	}()

	entries, err := c.entries.ListEligible(runCtx, force)
	if err != nil {
		status = domain.JobStatusError
		lastErr = fmt.Sprintf("load call entries: %v", err)
		return
	}

	units := GroupByMint(entries)
	c.progress.SetTotals(len(units), len(entries))
	c.logger.Printf("[backfill] Run %s: %d entries across %d mints", runID, len(entries), len(units))

	queue := NewQueue(units)
	observability.UpdateQueueDepth(queue.Len())

	var g errgroup.Group
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			c.work(runCtx, stopCtx, runID, queue)
			return nil
		})
	}
	_ = g.Wait()

	if stopCtx.Err() != nil && queue.Len() > 0 {
		status = domain.JobStatusPaused
	}
}

// work pulls units until the queue is empty or the job is stopped.
func (c *Controller) work(runCtx, stopCtx context.Context, runID string, queue *Queue) {
	for {
		if stopCtx.Err() != nil {
			return
		}
		unit, ok := queue.Pop()
		if !ok {
			return
		}
		observability.UpdateQueueDepth(queue.Len())

		c.progress.BeginMint(unit.Mint)
		start := c.now()
		res := c.process(runCtx, runID, unit)
		elapsed := c.now().Sub(start)
		c.progress.FinishMint(res, elapsed)

		observability.RecordMintProcessed(elapsed.Seconds())
		observability.RecordEntries("updated", res.Updated)
		observability.RecordEntries("error", res.Errors)
		observability.RecordEntries("skipped", res.Skipped)

		if c.delay > 0 {
			select {
			case <-stopCtx.Done():
				return
			case <-time.After(c.delay):
			}
		}
	}
}

// process runs one unit, converting a panic into per-entry errors so a
// single bad unit cannot end the job.
func (c *Controller) process(ctx context.Context, runID string, unit domain.MintWorkUnit) (res MintResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("[backfill] panic processing %s: %v", unit.Mint, r)
			res = MintResult{
				Mint:    unit.Mint,
				Entries: len(unit.Entries),
				Errors:  len(unit.Entries),
				Source:  domain.SourceNone,
			}
		}
	}()
	return c.processor.Process(ctx, runID, unit)
}
