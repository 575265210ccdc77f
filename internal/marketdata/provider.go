// Package marketdata fetches OHLC candles from external market-data providers
// and composes them into a priority-ordered fallback chain.
package marketdata

import (
	"context"
	"log"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/observability"
)

// CandleSource fetches candles for one mint at one granularity.
// Implementations never return an error: provider unavailability yields an
// empty slice. Candles are ascending by StartTimeMs.
type CandleSource interface {
	Name() domain.Source
	FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) []domain.Candle
}

// Default adapter settings.
const (
	DefaultTimeout          = 8 * time.Second
	DefaultRatePerSecond    = 5.0
	DefaultRateLimitRetries = 3
	DefaultRateLimitDelay   = 1500 * time.Millisecond
	DefaultMaxPages         = 5
)

// Options configures an adapter. Zero values take the defaults above.
type Options struct {
	BaseURL          string
	Timeout          time.Duration
	RatePerSecond    float64
	RateLimitRetries int           // retries after a 429; negative disables
	RateLimitDelay   time.Duration // delay between 429 retries
	MaxPages         int           // history windows fetched per call
	HTTPClient       *http.Client
	Tracer           trace.Tracer
	Logger           *log.Logger
	Debug            bool             // log provider failures
	Now              func() time.Time // clock, defaults to time.Now
}

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = DefaultRatePerSecond
	}
	switch {
	case o.RateLimitRetries == 0:
		o.RateLimitRetries = DefaultRateLimitRetries
	case o.RateLimitRetries < 0:
		o.RateLimitRetries = 0
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = DefaultRateLimitDelay
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Tracer == nil {
		o.Tracer = observability.Tracer()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// debugLogger prints only when debug logging is enabled.
type debugLogger struct {
	logger *log.Logger
	prefix string
	debug  bool
}

func (d debugLogger) Debugf(format string, args ...interface{}) {
	if !d.debug {
		return
	}
	d.logger.Printf(d.prefix+" "+format, args...)
}

// window is one [fromMs, toMs) slice of history requested in a single call.
type window struct {
	fromMs int64
	toMs   int64
}

// historyWindows splits [sinceMs, nowMs] into consecutive windows of at most
// limit buckets, oldest first, capped at maxPages windows.
//
// Minute candles only bridge the entry to the first hour boundary after it,
// which one page always covers, so the minute tier is capped at one window.
func historyWindows(sinceMs, nowMs int64, g domain.Granularity, limit, maxPages int) []window {
	bucket := g.Duration().Milliseconds()
	if bucket <= 0 || limit <= 0 || sinceMs >= nowMs {
		return nil
	}
	if g == domain.GranularityMinute {
		maxPages = min(maxPages, 1)
	}

	span := bucket * int64(limit)
	var out []window
	for from := sinceMs; from < nowMs && len(out) < maxPages; from += span {
		to := from + span
		if to > nowMs {
			to = nowMs
		}
		out = append(out, window{fromMs: from, toMs: to})
	}
	return out
}

// normalize sorts candles ascending, drops duplicates by start time and
// candles before sinceMs or with non-positive prices.
func normalize(candles []domain.Candle, sinceMs int64) []domain.Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].StartTimeMs < candles[j].StartTimeMs
	})

	out := candles[:0]
	var last int64 = -1
	for _, c := range candles {
		if c.StartTimeMs < sinceMs || c.StartTimeMs == last {
			continue
		}
		if c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			continue
		}
		out = append(out, c)
		last = c.StartTimeMs
	}
	return out
}
