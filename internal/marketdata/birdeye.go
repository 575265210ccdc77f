package marketdata

import (
	"context"
	"net/url"
	"strconv"

	"solana-call-tracker/internal/domain"
)

const (
	birdeyeBaseURL  = "https://public-api.birdeye.so"
	birdeyePageSize = 1000
)

// Birdeye is the premium candle source. It requires an API key.
type Birdeye struct {
	baseURL  string
	maxPages int
	now      func() int64
	http     *httpDoer
}

// NewBirdeye returns the adapter and true when apiKey is set. Without a key
// the adapter is not available and must be left out of the chain.
func NewBirdeye(apiKey string, opts Options) (*Birdeye, bool) {
	if apiKey == "" {
		return nil, false
	}
	opts = opts.withDefaults(birdeyeBaseURL)

	return &Birdeye{
		baseURL:  opts.BaseURL,
		maxPages: opts.MaxPages,
		now:      func() int64 { return opts.Now().UnixMilli() },
		http: newHTTPDoer("birdeye", opts, map[string]string{
			"X-API-KEY": apiKey,
			"x-chain":   "solana",
		}),
	}, true
}

// Compile-time interface check.
var _ CandleSource = (*Birdeye)(nil)

// Name implements CandleSource.
func (b *Birdeye) Name() domain.Source {
	return domain.SourceBirdeye
}

type birdeyeOHLCVResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Items []birdeyeItem `json:"items"`
	} `json:"data"`
}

type birdeyeItem struct {
	UnixTime int64   `json:"unixTime"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// FetchCandles implements CandleSource.
func (b *Birdeye) FetchCandles(ctx context.Context, mint string, g domain.Granularity, sinceMs int64) []domain.Candle {
	interval, ok := birdeyeInterval(g)
	if !ok {
		return nil
	}

	// A failed page ends paging; pages already fetched are kept.
	var candles []domain.Candle
pages:
	for _, w := range historyWindows(sinceMs, b.now(), g, birdeyePageSize, b.maxPages) {
		q := url.Values{}
		q.Set("address", mint)
		q.Set("type", interval)
		q.Set("time_from", strconv.FormatInt(w.fromMs/1000, 10))
		q.Set("time_to", strconv.FormatInt(w.toMs/1000, 10))

		var resp birdeyeOHLCVResponse
		if err := b.http.getJSON(ctx, "birdeye.fetch-ohlcv", b.baseURL+"/defi/ohlcv?"+q.Encode(), &resp); err != nil {
			b.http.log.Debugf("ohlcv %s %s: %v", mint, g, err)
			break pages
		}
		if !resp.Success || resp.Data == nil {
			b.http.log.Debugf("ohlcv %s %s: unsuccessful response", mint, g)
			break pages
		}

		for _, it := range resp.Data.Items {
			candles = append(candles, domain.Candle{
				StartTimeMs: it.UnixTime * 1000,
				Open:        it.Open,
				High:        it.High,
				Low:         it.Low,
				Close:       it.Close,
				Volume:      it.Volume,
				Granularity: g,
				Source:      domain.SourceBirdeye,
			})
		}
	}

	return normalize(candles, sinceMs)
}

func birdeyeInterval(g domain.Granularity) (string, bool) {
	switch g {
	case domain.GranularityMinute:
		return "1m", true
	case domain.GranularityHour:
		return "1H", true
	case domain.GranularityDay:
		return "1D", true
	}
	return "", false
}
