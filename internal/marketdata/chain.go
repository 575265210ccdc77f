package marketdata

import (
	"context"
	"log"

	"solana-call-tracker/internal/domain"
)

// Chain tries its sources in order and returns the first non-empty result.
// Results are never merged across sources.
type Chain struct {
	sources []CandleSource
}

// NewChain creates a chain in priority order. Nil sources are skipped.
func NewChain(sources ...CandleSource) *Chain {
	c := &Chain{}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// FetchCandles returns the first non-empty candle series and its source,
// or nil and SourceNone when no source has data.
func (c *Chain) FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) ([]domain.Candle, domain.Source) {
	for _, s := range c.sources {
		if ctx.Err() != nil {
			break
		}
		if candles := s.FetchCandles(ctx, mint, g, sinceMs); len(candles) > 0 {
			return candles, s.Name()
		}
	}
	return nil, domain.SourceNone
}

// Sources returns the names of the configured sources in priority order.
func (c *Chain) Sources() []domain.Source {
	out := make([]domain.Source, len(c.sources))
	for i, s := range c.sources {
		out[i] = s.Name()
	}
	return out
}

// ChainConfig selects and configures the default provider chain.
type ChainConfig struct {
	BirdeyeAPIKey        string
	BirdeyeBaseURL       string
	GeckoTerminalBaseURL string
	DexScreenerBaseURL   string
	DexScreenerFallback  bool
}

// NewDefaultChain builds Birdeye (when a key is set), GeckoTerminal and,
// if enabled, DexScreener, in that order.
func NewDefaultChain(cfg ChainConfig, pools *PoolCache, opts Options) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var sources []CandleSource

	birdeyeOpts := opts
	birdeyeOpts.BaseURL = cfg.BirdeyeBaseURL
	if b, ok := NewBirdeye(cfg.BirdeyeAPIKey, birdeyeOpts); ok {
		sources = append(sources, b)
	} else {
		logger.Printf("[marketdata] Birdeye disabled: no API key")
	}

	geckoOpts := opts
	geckoOpts.BaseURL = cfg.GeckoTerminalBaseURL
	sources = append(sources, NewGeckoTerminal(pools, geckoOpts))

	if cfg.DexScreenerFallback {
		dexOpts := opts
		dexOpts.BaseURL = cfg.DexScreenerBaseURL
		sources = append(sources, NewDexScreener(dexOpts))
	}

	chain := NewChain(sources...)
	logger.Printf("[marketdata] Provider chain: %v", chain.Sources())
	return chain
}
