package marketdata

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"solana-call-tracker/internal/domain"
)

const (
	geckoTerminalBaseURL  = "https://api.geckoterminal.com/api/v2"
	geckoTerminalPageSize = 1000
)

// GeckoTerminal is the free true-OHLC source. Candles are keyed by pool, so
// the mint is first resolved to its most liquid pool through the PoolCache.
type GeckoTerminal struct {
	baseURL  string
	maxPages int
	now      func() int64
	pools    *PoolCache
	http     *httpDoer
}

// NewGeckoTerminal creates the adapter. A nil cache gets a private one.
func NewGeckoTerminal(pools *PoolCache, opts Options) *GeckoTerminal {
	opts = opts.withDefaults(geckoTerminalBaseURL)
	if pools == nil {
		pools = NewPoolCache(nil)
	}

	return &GeckoTerminal{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		maxPages: opts.MaxPages,
		now:      func() int64 { return opts.Now().UnixMilli() },
		pools:    pools,
		http:     newHTTPDoer("geckoterminal", opts, nil),
	}
}

// Compile-time interface check.
var _ CandleSource = (*GeckoTerminal)(nil)

// Name implements CandleSource.
func (g *GeckoTerminal) Name() domain.Source {
	return domain.SourceGeckoTerminal
}

type geckoPoolsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Address      string `json:"address"`
			ReserveInUSD string `json:"reserve_in_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

type geckoOHLCVResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchCandles implements CandleSource.
func (g *GeckoTerminal) FetchCandles(ctx context.Context, mint string, gran domain.Granularity, sinceMs int64) []domain.Candle {
	timeframe, ok := geckoTimeframe(gran)
	if !ok {
		return nil
	}

	pool := g.resolvePool(ctx, mint)
	if pool == "" {
		return nil
	}

	// A failed page ends paging; pages already fetched are kept.
	var candles []domain.Candle
	for _, w := range historyWindows(sinceMs, g.now(), gran, geckoTerminalPageSize, g.maxPages) {
		q := url.Values{}
		q.Set("aggregate", "1")
		q.Set("limit", strconv.Itoa(geckoTerminalPageSize))
		q.Set("currency", "usd")
		q.Set("before_timestamp", strconv.FormatInt(w.toMs/1000, 10))

		u := g.baseURL + "/networks/solana/pools/" + url.PathEscape(pool) + "/ohlcv/" + timeframe + "?" + q.Encode()

		var resp geckoOHLCVResponse
		if err := g.http.getJSON(ctx, "geckoterminal.fetch-ohlcv", u, &resp); err != nil {
			g.http.log.Debugf("ohlcv %s (pool %s) %s: %v", mint, pool, gran, err)
			break
		}

		for _, row := range resp.Data.Attributes.OHLCVList {
			c, ok := geckoCandle(row, gran)
			if !ok || c.StartTimeMs < w.fromMs {
				continue
			}
			candles = append(candles, c)
		}
	}

	return normalize(candles, sinceMs)
}

// resolvePool returns the cached pool for mint, resolving it on first use.
// A failed resolution is cached as absent.
func (g *GeckoTerminal) resolvePool(ctx context.Context, mint string) string {
	if pool, known := g.pools.Lookup(ctx, mint); known {
		return pool
	}

	u := g.baseURL + "/networks/solana/tokens/" + url.PathEscape(mint) + "/pools"

	var resp geckoPoolsResponse
	if err := g.http.getJSON(ctx, "geckoterminal.resolve-pool", u, &resp); err != nil {
		g.http.log.Debugf("resolve pool %s: %v", mint, err)
		if ctx.Err() == nil {
			g.pools.Store(ctx, mint, "")
		}
		return ""
	}

	pool := topPool(resp)
	if pool == "" {
		g.http.log.Debugf("resolve pool %s: no pools", mint)
	}
	g.pools.Store(ctx, mint, pool)
	return pool
}

// topPool picks the pool with the largest USD reserve.
func topPool(resp geckoPoolsResponse) string {
	best := ""
	bestReserve := decimal.NewFromInt(-1)
	for _, p := range resp.Data {
		addr := p.Attributes.Address
		if addr == "" {
			addr = strings.TrimPrefix(p.ID, "solana_")
		}
		if addr == "" {
			continue
		}

		reserve, err := decimal.NewFromString(p.Attributes.ReserveInUSD)
		if err != nil {
			reserve = decimal.Zero
		}
		if reserve.GreaterThan(bestReserve) {
			best, bestReserve = addr, reserve
		}
	}
	return best
}

// geckoCandle maps [timestamp_s, open, high, low, close, volume].
func geckoCandle(row []float64, g domain.Granularity) (domain.Candle, bool) {
	if len(row) < 5 {
		return domain.Candle{}, false
	}
	c := domain.Candle{
		StartTimeMs: int64(row[0]) * 1000,
		Open:        row[1],
		High:        row[2],
		Low:         row[3],
		Close:       row[4],
		Granularity: g,
		Source:      domain.SourceGeckoTerminal,
	}
	if len(row) > 5 {
		c.Volume = row[5]
	}
	return c, true
}

func geckoTimeframe(g domain.Granularity) (string, bool) {
	switch g {
	case domain.GranularityMinute:
		return "minute", true
	case domain.GranularityHour:
		return "hour", true
	case domain.GranularityDay:
		return "day", true
	}
	return "", false
}
