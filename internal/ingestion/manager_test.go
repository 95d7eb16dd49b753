package ingestion

import (
	"context"
	"errors"
	"testing"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
	"token-flow-lab/internal/storage/memory"
)

type staticSwapSource struct {
	swaps []*domain.Swap
	err   error
}

func (s *staticSwapSource) Fetch(context.Context) ([]*domain.Swap, error) {
	return s.swaps, s.err
}

type staticMetadataSource struct {
	metas []*domain.TokenMetadata
}

func (s *staticMetadataSource) Fetch(context.Context) ([]*domain.TokenMetadata, error) {
	return s.metas, nil
}

// orderValidatingSwapStore wraps a SwapStore and validates ordering in InsertBulk.
// Returns ErrInvalidOrdering if swaps are not properly ordered.
type orderValidatingSwapStore struct {
	storage.SwapStore
	batches int
}

func (s *orderValidatingSwapStore) InsertBulk(ctx context.Context, swaps []*domain.Swap) error {
	if err := ValidateSwapOrdering(swaps); err != nil {
		return err
	}
	s.batches++
	return s.SwapStore.InsertBulk(ctx, swaps)
}

func swapAt(tx string, idx int, ts int64) *domain.Swap {
	return &domain.Swap{TxHash: tx, EventIndex: idx, Timestamp: ts, TokenIn: "USDC", TokenOut: "WETH", AmountUSD: 100}
}

func TestManager_IngestSwaps_Ordering(t *testing.T) {
	// Manager must sort before InsertBulk, otherwise the validating store fails
	swaps := []*domain.Swap{
		swapAt("tx3", 0, 3000),
		swapAt("tx1", 0, 1000),
		swapAt("tx2", 0, 2000),
	}
	store := &orderValidatingSwapStore{SwapStore: memory.NewSwapStore()}

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: swaps},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: store}},
	})

	res, err := mgr.IngestSwaps(context.Background())
	if err != nil {
		t.Fatalf("IngestSwaps failed: %v", err)
	}
	if res.Read != 3 {
		t.Errorf("Expected 3 swaps read, got %d", res.Read)
	}
	if res.Inserted["memory"] != 3 {
		t.Errorf("Expected 3 swaps inserted, got %d", res.Inserted["memory"])
	}
}

func TestManager_IngestSwaps_Batches(t *testing.T) {
	var swaps []*domain.Swap
	for i := 0; i < 5; i++ {
		swaps = append(swaps, swapAt("tx", i, 1000))
	}
	store := &orderValidatingSwapStore{SwapStore: memory.NewSwapStore()}

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: swaps},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: store}},
		BatchSize:  2,
	})

	if _, err := mgr.IngestSwaps(context.Background()); err != nil {
		t.Fatalf("IngestSwaps failed: %v", err)
	}
	if store.batches != 3 {
		t.Errorf("Expected 3 batches, got %d", store.batches)
	}
}

func TestManager_IngestSwaps_MultipleStores(t *testing.T) {
	a, b := memory.NewSwapStore(), memory.NewSwapStore()

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: []*domain.Swap{swapAt("tx1", 0, 1000)}},
		SwapStores: []NamedSwapStore{{Name: "a", Store: a}, {Name: "b", Store: b}},
	})

	res, err := mgr.IngestSwaps(context.Background())
	if err != nil {
		t.Fatalf("IngestSwaps failed: %v", err)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("Expected one swap per store, got %d/%d", a.Len(), b.Len())
	}
	if res.Inserted["a"] != 1 || res.Inserted["b"] != 1 {
		t.Errorf("Unexpected inserted counts %v", res.Inserted)
	}
}

func TestManager_IngestSwaps_DuplicateRejection(t *testing.T) {
	store := memory.NewSwapStore()
	if err := store.Insert(context.Background(), swapAt("tx1", 0, 1000)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: []*domain.Swap{swapAt("tx1", 0, 1000), swapAt("tx2", 0, 2000)}},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: store}},
	})

	_, err := mgr.IngestSwaps(context.Background())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Expected atomic batch rejection, store has %d swaps", store.Len())
	}
}

func TestManager_IngestSwaps_SkipExisting(t *testing.T) {
	store := memory.NewSwapStore()
	if err := store.Insert(context.Background(), swapAt("tx1", 0, 1000)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mgr := NewManager(ManagerOptions{
		SwapSource:   &staticSwapSource{swaps: []*domain.Swap{swapAt("tx1", 0, 1000), swapAt("tx2", 0, 2000)}},
		SwapStores:   []NamedSwapStore{{Name: "memory", Store: store}},
		SkipExisting: true,
	})

	res, err := mgr.IngestSwaps(context.Background())
	if err != nil {
		t.Fatalf("IngestSwaps failed: %v", err)
	}
	if res.Inserted["memory"] != 1 || res.Duplicates["memory"] != 1 {
		t.Errorf("Expected 1 inserted and 1 duplicate, got %d/%d", res.Inserted["memory"], res.Duplicates["memory"])
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 swaps stored, got %d", store.Len())
	}
}

func TestManager_IngestSwaps_InvalidSwap(t *testing.T) {
	bad := swapAt("tx1", 0, 1000)
	bad.TokenOut = ""
	store := memory.NewSwapStore()

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: []*domain.Swap{swapAt("tx0", 0, 500), bad}},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: store}},
	})

	_, err := mgr.IngestSwaps(context.Background())
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected nothing stored, got %d", store.Len())
	}
}

func TestManager_IngestSwaps_SourceError(t *testing.T) {
	boom := errors.New("boom")
	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{err: boom},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: memory.NewSwapStore()}},
	})

	if _, err := mgr.IngestSwaps(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected source error, got %v", err)
	}
}

func TestManager_IngestSwaps_NoSource(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	res, err := mgr.IngestSwaps(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Read != 0 {
		t.Errorf("Expected nothing read, got %d", res.Read)
	}
}

func TestManager_Run_MetadataThenSwaps(t *testing.T) {
	metaStore := memory.NewTokenMetadataStore()
	swapStore := memory.NewSwapStore()
	name := "Wrapped Ether"

	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: []*domain.Swap{swapAt("tx1", 0, 1000)}},
		MetadataSource: &staticMetadataSource{metas: []*domain.TokenMetadata{
			{Symbol: "WETH", Name: &name, Decimals: 18},
			{Symbol: "USDC", Decimals: 6},
		}},
		SwapStores:    []NamedSwapStore{{Name: "memory", Store: swapStore}},
		MetadataStore: metaStore,
	})

	res, err := mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Metadata != 2 {
		t.Errorf("Expected 2 metadata rows, got %d", res.Metadata)
	}
	if res.Inserted["memory"] != 1 {
		t.Errorf("Expected 1 swap, got %d", res.Inserted["memory"])
	}

	got, err := metaStore.GetBySymbol(context.Background(), "WETH")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if got.Name == nil || *got.Name != name {
		t.Errorf("Expected name %q, got %v", name, got.Name)
	}
}

func TestManager_IngestMetadata_UpsertIsIdempotent(t *testing.T) {
	metaStore := memory.NewTokenMetadataStore()
	mgr := NewManager(ManagerOptions{
		MetadataSource: &staticMetadataSource{metas: []*domain.TokenMetadata{{Symbol: "WETH", Decimals: 18}}},
		MetadataStore:  metaStore,
	})

	for i := 0; i < 2; i++ {
		if _, err := mgr.IngestMetadata(context.Background()); err != nil {
			t.Fatalf("IngestMetadata run %d failed: %v", i, err)
		}
	}
}

func TestManager_IngestSwaps_RepeatedInSource(t *testing.T) {
	store := memory.NewSwapStore()
	mgr := NewManager(ManagerOptions{
		SwapSource: &staticSwapSource{swaps: []*domain.Swap{
			swapAt("tx1", 0, 1000),
			swapAt("tx2", 0, 2000),
			swapAt("tx1", 0, 1000),
		}},
		SwapStores: []NamedSwapStore{{Name: "memory", Store: store}},
	})

	res, err := mgr.IngestSwaps(context.Background())
	if err != nil {
		t.Fatalf("IngestSwaps failed: %v", err)
	}
	if res.Read != 3 || res.Repeated != 1 {
		t.Errorf("Read/Repeated = %d/%d, want 3/1", res.Read, res.Repeated)
	}
	if res.Inserted["memory"] != 2 || store.Len() != 2 {
		t.Errorf("Expected 2 swaps stored, got inserted=%d len=%d", res.Inserted["memory"], store.Len())
	}
}
