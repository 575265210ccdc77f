package domain

// Source identifies the market-data provider that produced a candle series.
type Source string

const (
	SourceBirdeye       Source = "BIRDEYE"
	SourceGeckoTerminal Source = "GECKOTERMINAL"
	SourceDexScreener   Source = "DEXSCREENER"
	SourceNone          Source = "NONE" // no provider had data
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	switch s {
	case SourceBirdeye, SourceGeckoTerminal, SourceDexScreener, SourceNone:
		return true
	}
	return false
}
