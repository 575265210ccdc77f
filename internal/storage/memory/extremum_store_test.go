package memory

import (
	"context"
	"errors"
	"testing"

	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/storage"
)

func TestExtremumStore_UpsertOverwrites(t *testing.T) {
	store := NewExtremumStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.ExtremumRecord{EntryID: "e1", ATHMultiple: 2, Source: domain.SourceNone}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.ExtremumRecord{EntryID: "e1", ATHMultiple: 4, Source: domain.SourceNone}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	r, err := store.GetByEntryID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByEntryID failed: %v", err)
	}
	if r.ATHMultiple != 4 {
		t.Errorf("ATHMultiple mismatch: got %f, want 4", r.ATHMultiple)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 record, got %d", store.Len())
	}
}

func TestExtremumStore_GetNotFound(t *testing.T) {
	store := NewExtremumStore()

	_, err := store.GetByEntryID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExtremumStore_ReturnsCopy(t *testing.T) {
	store := NewExtremumStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.ExtremumRecord{EntryID: "e1", ATHMultiple: 2, Source: domain.SourceNone}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	r, _ := store.GetByEntryID(ctx, "e1")
	r.ATHMultiple = 100

	again, _ := store.GetByEntryID(ctx, "e1")
	if again.ATHMultiple != 2 {
		t.Errorf("stored record was mutated: got %f", again.ATHMultiple)
	}
}

func TestExtremumStore_RejectsUnknownSource(t *testing.T) {
	store := NewExtremumStore()
	ctx := context.Background()

	for _, src := range []domain.Source{"", "COINGECKO"} {
		err := store.Upsert(ctx, &domain.ExtremumRecord{EntryID: "e1", ATHMultiple: 2, Source: src})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("source %q: expected ErrInvalidInput, got %v", src, err)
		}
	}
	if store.Len() != 0 {
		t.Errorf("expected no records, got %d", store.Len())
	}
}
