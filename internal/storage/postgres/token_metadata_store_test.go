package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

func TestTokenMetadataStore_InsertAndGetBySymbol(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	meta := &domain.TokenMetadata{
		Symbol:    "USDC",
		Mint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Name:      ptr("USD Coin"),
		Decimals:  6,
		ImageURL:  ptr("https://example.com/usdc.png"),
		UpdatedAt: 1700000000000,
	}
	require.NoError(t, store.Insert(ctx, meta))

	got, err := store.GetBySymbol(ctx, "USDC")
	require.NoError(t, err)
	assert.Equal(t, meta.Symbol, got.Symbol)
	assert.Equal(t, meta.Mint, got.Mint)
	require.NotNil(t, got.Name)
	assert.Equal(t, "USD Coin", *got.Name)
	assert.Equal(t, 6, got.Decimals)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, *meta.ImageURL, *got.ImageURL)
	assert.Equal(t, meta.UpdatedAt, got.UpdatedAt)

	byMint, err := store.GetByMint(ctx, meta.Mint)
	require.NoError(t, err)
	assert.Equal(t, "USDC", byMint.Symbol)
}

func TestTokenMetadataStore_InsertDuplicate(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.TokenMetadata{Symbol: "SOL", Mint: "mintA"}))

	err := store.Insert(ctx, &domain.TokenMetadata{Symbol: "SOL"})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)

	err = store.Insert(ctx, &domain.TokenMetadata{Symbol: "WSOL", Mint: "mintA"})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestTokenMetadataStore_EmptyMintsDoNotCollide(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.TokenMetadata{Symbol: "WETH"}))
	require.NoError(t, store.Insert(ctx, &domain.TokenMetadata{Symbol: "DAI"}))

	got, err := store.GetBySymbol(ctx, "DAI")
	require.NoError(t, err)
	assert.Empty(t, got.Mint)
	assert.Nil(t, got.Name)
	assert.Nil(t, got.ImageURL)
	assert.NotZero(t, got.UpdatedAt)
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	_, err := store.GetBySymbol(ctx, "NOPE")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)

	_, err = store.GetByMint(ctx, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestTokenMetadataStore_Upsert(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{Symbol: "BONK", Decimals: 5}))
	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{
		Symbol:   "BONK",
		Mint:     "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		Decimals: 5,
		ImageURL: ptr("https://example.com/bonk.png"),
	}))

	got, err := store.GetBySymbol(ctx, "BONK")
	require.NoError(t, err)
	assert.Equal(t, "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", got.Mint)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://example.com/bonk.png", *got.ImageURL)
}

func TestTokenMetadataStore_GetBySymbols(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	for _, sym := range []string{"WETH", "USDC", "DAI"} {
		require.NoError(t, store.Insert(ctx, &domain.TokenMetadata{Symbol: sym}))
	}

	got, err := store.GetBySymbols(ctx, []string{"USDC", "WETH", "MISSING"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "USDC", got[0].Symbol)
	assert.Equal(t, "WETH", got[1].Symbol)

	none, err := store.GetBySymbols(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	pool := setupTestDB(t)

	err := NewTokenMetadataStore(pool).Insert(context.Background(), &domain.TokenMetadata{Symbol: " "})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
}
