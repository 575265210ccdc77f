package backfill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-call-tracker/internal/domain"
)

func TestCeilTo(t *testing.T) {
	assert.Equal(t, 2*hourMs, ceilTo(hourMs+1, hourMs))
	assert.Equal(t, hourMs, ceilTo(hourMs, hourMs))
	assert.Equal(t, dayMs, ceilTo(hourMs, dayMs))
}

func TestRoundToMinute(t *testing.T) {
	assert.Equal(t, int64(0), roundToMinute(29_999))
	assert.Equal(t, minuteMs, roundToMinute(30_000))
	assert.Equal(t, minuteMs, roundToMinute(minuteMs+10))
}

func TestAssembler_RecentEntrySkipsAllTiers(t *testing.T) {
	entry := 10*dayMs + 30*minuteMs
	now := entry + 10*minuteMs // next hour boundary not yet reached

	f := &fakeFetcher{}
	candles, source := NewAssembler(f).Assemble(context.Background(), testMint, entry, now)

	assert.Empty(t, candles)
	assert.Equal(t, domain.SourceNone, source)
	assert.Empty(t, f.calls)
}

func TestAssembler_MinuteAndHourTiers(t *testing.T) {
	entry := 10*dayMs + 30*minuteMs
	nextHour := 10*dayMs + hourMs
	now := entry + 5*hourMs

	f := &fakeFetcher{
		source: domain.SourceGeckoTerminal,
		candles: map[domain.Granularity][]domain.Candle{
			domain.GranularityMinute: {
				candle(entry-minuteMs, 9, 1, 1), // pre-entry spike
				candle(entry, 1.1, 1, 1),
				candle(entry+minuteMs, 1.5, 1, 1),
				candle(nextHour, 1.2, 1, 1),
			},
			domain.GranularityHour: {
				candle(10*dayMs, 9, 1, 1), // bucket started before entry
				candle(nextHour, 2, 1, 1),
				candle(nextHour+hourMs, 3, 1, 1),
			},
		},
	}

	candles, source := NewAssembler(f).Assemble(context.Background(), testMint, entry, now)

	assert.Equal(t, domain.SourceGeckoTerminal, source)
	assert.Equal(t, []domain.Granularity{domain.GranularityMinute, domain.GranularityHour}, f.granularities())
	assert.Equal(t, entry, f.calls[0].sinceMs)
	assert.Equal(t, nextHour, f.calls[1].sinceMs)

	require.Len(t, candles, 4)
	assert.Equal(t, entry, candles[0].StartTimeMs)
	assert.Equal(t, entry+minuteMs, candles[1].StartTimeMs)

	// The hour candle at nextHour was fetched after the minute one and wins.
	assert.Equal(t, nextHour, candles[2].StartTimeMs)
	assert.Equal(t, domain.GranularityHour, candles[2].Granularity)
	assert.Equal(t, 2.0, candles[2].High)

	for _, c := range candles {
		assert.NotEqual(t, 9.0, c.High, "pre-entry data must not leak in")
	}
}

func TestAssembler_DayTierForOldTokens(t *testing.T) {
	entry := 10*dayMs + 7*hourMs + 15*minuteMs
	nextHour := 10*dayMs + 8*hourMs
	nextDay := 11 * dayMs
	now := entry + 5*dayMs

	f := &fakeFetcher{
		source: domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{
			domain.GranularityHour: {
				candle(nextHour, 2, 1, 1),
				candle(nextDay, 3, 1, 1),
			},
			domain.GranularityDay: {
				candle(10*dayMs, 50, 1, 1), // day holding the entry
				candle(nextDay, 4, 1, 1),
				candle(nextDay+dayMs, 5, 1, 1),
			},
		},
	}

	candles, source := NewAssembler(f).Assemble(context.Background(), testMint, entry, now)

	assert.Equal(t, domain.SourceBirdeye, source)
	assert.Equal(t, []domain.Granularity{
		domain.GranularityMinute, domain.GranularityHour, domain.GranularityDay,
	}, f.granularities())
	assert.Equal(t, nextDay, f.calls[2].sinceMs)

	require.Len(t, candles, 3)
	assert.Equal(t, nextHour, candles[0].StartTimeMs)
	assert.Equal(t, nextDay, candles[1].StartTimeMs)
	assert.Equal(t, domain.GranularityDay, candles[1].Granularity, "day tier fetched last wins")
	assert.Equal(t, 4.0, candles[1].High)
	assert.Equal(t, nextDay+dayMs, candles[2].StartTimeMs)
}

func TestAssembler_NoDayTierUnderTwoDays(t *testing.T) {
	entry := 10*dayMs + 30*minuteMs
	now := entry + 2*dayMs

	f := &fakeFetcher{}
	NewAssembler(f).Assemble(context.Background(), testMint, entry, now)

	assert.Equal(t, []domain.Granularity{domain.GranularityMinute, domain.GranularityHour}, f.granularities())
}

func TestAssembler_NonOverlap(t *testing.T) {
	entry := 3*dayMs + 20*minuteMs + 17_000
	now := entry + 10*dayMs

	var minute, hour, day []domain.Candle
	for ts := entry - 30*minuteMs; ts < entry+3*hourMs; ts += minuteMs {
		minute = append(minute, candle(ts, 1, 1, 1))
	}
	for ts := 3 * dayMs; ts < now; ts += hourMs {
		hour = append(hour, candle(ts, 1, 1, 1))
	}
	for ts := 3 * dayMs; ts < now; ts += dayMs {
		day = append(day, candle(ts, 1, 1, 1))
	}

	f := &fakeFetcher{
		source: domain.SourceBirdeye,
		candles: map[domain.Granularity][]domain.Candle{
			domain.GranularityMinute: minute,
			domain.GranularityHour:   hour,
			domain.GranularityDay:    day,
		},
	}

	candles, _ := NewAssembler(f).Assemble(context.Background(), testMint, entry, now)
	require.NotEmpty(t, candles)

	seen := make(map[int64]bool)
	for i, c := range candles {
		key := roundToMinute(c.StartTimeMs)
		assert.False(t, seen[key], "duplicate rounded timestamp %d", key)
		seen[key] = true

		if c.Granularity == domain.GranularityMinute {
			assert.GreaterOrEqual(t, c.StartTimeMs, entry)
		}
		if i > 0 {
			assert.Greater(t, c.StartTimeMs, candles[i-1].StartTimeMs)
		}
	}
}
