package domain

import "time"

// Granularity is the bucket size of a candle.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Duration returns the bucket length.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	}
	return 0
}

// String returns the string representation of Granularity.
func (g Granularity) String() string {
	return string(g)
}

// Candle is one OHLCV sample. Transient: never persisted.
type Candle struct {
	StartTimeMs int64       // bucket start (ms)
	Open        float64     // first price in bucket
	High        float64     // max price in bucket
	Low         float64     // min price in bucket
	Close       float64     // last price in bucket
	Volume      float64     // USD volume in bucket
	Granularity Granularity // bucket size
	Source      Source      // producing provider
	Synthetic   bool        // true for heuristic points that are not real OHLC history
}
