package marketdata

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-call-tracker/internal/domain"
)

const dexScreenerBaseURL = "https://api.dexscreener.com"

// DexScreener is the last-resort source. It has no price history: the
// adapter derives two synthetic points from the current price and the 24h
// change, one at now-24h and one at now. Both are marked Synthetic.
//
// Points are only produced for hour requests so one assembled series never
// holds more than one synthetic pair.
type DexScreener struct {
	baseURL string
	now     func() time.Time
	http    *httpDoer
}

// NewDexScreener creates the adapter.
func NewDexScreener(opts Options) *DexScreener {
	opts = opts.withDefaults(dexScreenerBaseURL)
	return &DexScreener{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		now:     opts.Now,
		http:    newHTTPDoer("dexscreener", opts, nil),
	}
}

// Compile-time interface check.
var _ CandleSource = (*DexScreener)(nil)

// Name implements CandleSource.
func (d *DexScreener) Name() domain.Source {
	return domain.SourceDexScreener
}

type dexTokenResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange *struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
}

// FetchCandles implements CandleSource.
func (d *DexScreener) FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) []domain.Candle {
	if g != domain.GranularityHour {
		return nil
	}

	var resp dexTokenResponse
	u := d.baseURL + "/latest/dex/tokens/" + url.PathEscape(mint)
	if err := d.http.getJSON(ctx, "dexscreener.fetch-token", u, &resp); err != nil {
		d.http.log.Debugf("token %s: %v", mint, err)
		return nil
	}

	pair, ok := bestPair(resp.Pairs)
	if !ok {
		d.http.log.Debugf("token %s: no solana pair with a price", mint)
		return nil
	}

	return syntheticCandles(pair, d.now(), sinceMs)
}

// bestPair returns the most liquid solana pair that carries a USD price.
func bestPair(pairs []dexPair) (dexPair, bool) {
	var best dexPair
	found := false
	for _, p := range pairs {
		if p.ChainID != "" && p.ChainID != "solana" {
			continue
		}
		if _, err := decimal.NewFromString(p.PriceUSD); err != nil {
			continue
		}
		if !found || liquidity(p) > liquidity(best) {
			best, found = p, true
		}
	}
	return best, found
}

func liquidity(p dexPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// syntheticCandles builds the (now-24h, now) point pair. The past price is
// price / (1 + change/100); it is omitted when the change is missing or
// not above -100%.
func syntheticCandles(p dexPair, now time.Time, sinceMs int64) []domain.Candle {
	price, err := decimal.NewFromString(p.PriceUSD)
	if err != nil || !price.IsPositive() {
		return nil
	}

	current := now.Truncate(time.Hour)
	var out []domain.Candle

	if p.PriceChange != nil && p.PriceChange.H24 != nil {
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(*p.PriceChange.H24).Div(decimal.NewFromInt(100)))
		if factor.IsPositive() {
			past, _ := price.Div(factor).Float64()
			out = append(out, syntheticPoint(current.Add(-24*time.Hour).UnixMilli(), past, 0))
		}
	}

	cur, _ := price.Float64()
	var vol float64
	if p.Volume != nil {
		vol = p.Volume.H24
	}
	out = append(out, syntheticPoint(current.UnixMilli(), cur, vol))

	filtered := out[:0]
	for _, c := range out {
		if c.StartTimeMs >= sinceMs {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func syntheticPoint(startMs int64, price, volume float64) domain.Candle {
	return domain.Candle{
		StartTimeMs: startMs,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      volume,
		Granularity: domain.GranularityHour,
		Source:      domain.SourceDexScreener,
		Synthetic:   true,
	}
}
