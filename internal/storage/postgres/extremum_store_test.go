package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

func TestExtremumStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entryID := createTestEntry(t, ctx, pool, "ext-1", "MintExt", 1.0, 1700000000000)
	store := NewExtremumStore(pool)

	record := &domain.ExtremumRecord{
		EntryID:          entryID,
		Mint:             "MintExt",
		CurrentPrice:     3.0,
		CurrentMultiple:  3.0,
		CurrentMarketCap: ptr(3e6),
		ATHPrice:         6.0,
		ATHMultiple:      6.0,
		ATHMarketCap:     ptr(6e6),
		ATHAtMs:          1700000600000,
		TimeToATHMs:      600000,
		MaxDrawdownPct:   -20,
		MinLowPrice:      0.8,
		MinLowAtMs:       1700000060000,
		TimeTo2xMs:       ptr(int64(60000)),
		TimeTo3xMs:       ptr(int64(600000)),
		TimeTo5xMs:       ptr(int64(600000)),
		LastObservedAtMs: 1700003600000,
		Source:           domain.SourceGeckoTerminal,
		CandleCount:      3,
	}

	require.NoError(t, store.Upsert(ctx, record))

	got, err := store.GetByEntryID(ctx, entryID)
	require.NoError(t, err)

	assert.Equal(t, record.ATHMultiple, got.ATHMultiple)
	assert.Equal(t, record.ATHAtMs, got.ATHAtMs)
	assert.Equal(t, record.Source, got.Source)
	require.NotNil(t, got.TimeTo5xMs)
	assert.Equal(t, int64(600000), *got.TimeTo5xMs)
	assert.Nil(t, got.TimeTo10xMs)
	require.NotNil(t, got.ATHMarketCap)
	assert.InDelta(t, 6e6, *got.ATHMarketCap, 0.01)
}

func TestExtremumStore_UpsertIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entryID := createTestEntry(t, ctx, pool, "ext-idem", "MintIdem", 1.0, 1700000000000)
	store := NewExtremumStore(pool)

	record := degenerateRecord(entryID, "MintIdem", 1.0)
	require.NoError(t, store.Upsert(ctx, record))
	require.NoError(t, store.Upsert(ctx, record))

	record.ATHPrice = 4.0
	record.ATHMultiple = 4.0
	require.NoError(t, store.Upsert(ctx, record))

	got, err := store.GetByEntryID(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.ATHMultiple)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM extremum_records WHERE entry_id = $1", entryID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestExtremumStore_UnknownEntry(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewExtremumStore(pool)

	err := store.Upsert(ctx, degenerateRecord("missing-entry", "MintX", 1.0))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestExtremumStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExtremumStore(pool)

	_, err := store.GetByEntryID(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExtremumStore_UnknownSource(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entryID := createTestEntry(t, ctx, pool, "ext-src", "MintSrc", 1.0, 1700000000000)
	store := NewExtremumStore(pool)

	record := degenerateRecord(entryID, "MintSrc", 1.0)
	record.Source = "COINGECKO"
	assert.ErrorIs(t, store.Upsert(ctx, record), storage.ErrInvalidInput)

	record.Source = domain.SourceNone
	require.NoError(t, store.Upsert(ctx, record))
	_, err := pool.Exec(ctx, "UPDATE extremum_records SET source = 'COINGECKO' WHERE entry_id = $1", entryID)
	require.NoError(t, err)

	_, err = store.GetByEntryID(ctx, entryID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "COINGECKO"`)
}
