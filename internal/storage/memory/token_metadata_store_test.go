package memory

import (
	"context"
	"errors"
	"testing"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

func strPtr(s string) *string { return &s }

func TestTokenMetadataStore_InsertAndGet(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	m := &domain.TokenMetadata{
		Symbol:   "BONK",
		Mint:     "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		Name:     strPtr("Bonk"),
		Decimals: 5,
		ImageURL: strPtr("https://img/bonk.png"),
	}
	if err := store.Insert(ctx, m); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "BONK")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if *got.Name != "Bonk" || got.Decimals != 5 {
		t.Errorf("Unexpected metadata: %+v", got)
	}

	got, err = store.GetByMint(ctx, m.Mint)
	if err != nil || got.Symbol != "BONK" {
		t.Errorf("GetByMint = %+v, %v", got, err)
	}

	if _, err := store.GetBySymbol(ctx, "NOPE"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTokenMetadataStore_Duplicates(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.TokenMetadata{Symbol: "A", Mint: "mintA"})

	if err := store.Insert(ctx, &domain.TokenMetadata{Symbol: "A"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for symbol, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TokenMetadata{Symbol: "B", Mint: "mintA"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for mint, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.TokenMetadata{Symbol: "B", Mint: "mintA"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey on upsert stealing a mint, got %v", err)
	}
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, &domain.TokenMetadata{Symbol: "A", Mint: "old", Decimals: 6})
	if err := store.Upsert(ctx, &domain.TokenMetadata{Symbol: "A", Mint: "new", Decimals: 9}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, _ := store.GetBySymbol(ctx, "A")
	if got.Decimals != 9 || got.Mint != "new" {
		t.Errorf("Upsert did not replace: %+v", got)
	}
	if _, err := store.GetByMint(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected old mint to be released, got %v", err)
	}
}

func TestTokenMetadataStore_GetBySymbols(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()
	for _, s := range []string{"A", "B", "C"} {
		_ = store.Insert(ctx, &domain.TokenMetadata{Symbol: s})
	}

	got, err := store.GetBySymbols(ctx, []string{"C", "X", "A", "C"})
	if err != nil {
		t.Fatalf("GetBySymbols failed: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "C" || got[1].Symbol != "A" {
		t.Errorf("Unexpected result: %v", got)
	}
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	store := NewTokenMetadataStore()
	if err := store.Insert(context.Background(), &domain.TokenMetadata{Symbol: " "}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
