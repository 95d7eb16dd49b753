package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/storage"
)

// DefaultBatchSize is the number of swaps written per InsertBulk call.
const DefaultBatchSize = 1000

// NamedSwapStore is a swap store with a label for logs and metrics.
type NamedSwapStore struct {
	Name  string
	Store storage.SwapStore
}

// Manager moves swaps and metadata from sources into storage.
// It enforces deterministic ordering and uses storage layer for duplicate rejection.
type Manager struct {
	swapSource     SwapSource
	metadataSource MetadataSource

	swapStores    []NamedSwapStore
	metadataStore storage.TokenMetadataStore

	batchSize    int
	skipExisting bool
	logger       *log.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	SwapSource     SwapSource
	MetadataSource MetadataSource

	SwapStores    []NamedSwapStore
	MetadataStore storage.TokenMetadataStore

	BatchSize int // default DefaultBatchSize
	// SkipExisting retries a batch that hit ErrDuplicateKey swap by swap,
	// counting duplicates instead of failing.
	SkipExisting bool
	Logger       *log.Logger
}

// Result counts what one ingestion run wrote.
type Result struct {
	Read       int
	Repeated   int            // swaps repeated within the source, dropped before writing
	Inserted   map[string]int // by store name
	Duplicates map[string]int // by store name
	Metadata   int
}

// NewManager creates a new ingestion manager with the provided sources and stores.
func NewManager(opts ManagerOptions) *Manager {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		swapSource:     opts.SwapSource,
		metadataSource: opts.MetadataSource,
		swapStores:     opts.SwapStores,
		metadataStore:  opts.MetadataStore,
		batchSize:      batch,
		skipExisting:   opts.SkipExisting,
		logger:         logger,
	}
}

// Run ingests metadata and then swaps.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		Inserted:   make(map[string]int),
		Duplicates: make(map[string]int),
	}

	n, err := m.IngestMetadata(ctx)
	res.Metadata = n
	if err != nil {
		return res, err
	}

	if err := m.ingestSwaps(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// IngestSwaps fetches swaps from source and stores them in every store,
// one batch at a time. Batches already written stay written on error.
func (m *Manager) IngestSwaps(ctx context.Context) (*Result, error) {
	res := &Result{
		Inserted:   make(map[string]int),
		Duplicates: make(map[string]int),
	}
	err := m.ingestSwaps(ctx, res)
	return res, err
}

func (m *Manager) ingestSwaps(ctx context.Context, res *Result) error {
	if m.swapSource == nil || len(m.swapStores) == 0 {
		return nil
	}

	swaps, err := m.swapSource.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch swaps: %w", err)
	}
	res.Read = len(swaps)
	if len(swaps) == 0 {
		return nil
	}

	for _, s := range swaps {
		if err := storage.ValidateSwap(s); err != nil {
			return fmt.Errorf("swap %s/%d: %w", s.TxHash, s.EventIndex, err)
		}
	}

	swaps, res.Repeated = DedupeSwaps(swaps)
	if res.Repeated > 0 {
		m.logger.Printf("dropped %d swaps repeated within the source", res.Repeated)
	}
	SortSwaps(swaps)

	for _, st := range m.swapStores {
		for start := 0; start < len(swaps); start += m.batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(start+m.batchSize, len(swaps))
			inserted, dups, err := m.writeBatch(ctx, st.Store, swaps[start:end])
			res.Inserted[st.Name] += inserted
			res.Duplicates[st.Name] += dups
			observability.RecordSwapsIngested(st.Name, inserted)
			if err != nil {
				return fmt.Errorf("insert swaps into %s: %w", st.Name, err)
			}
		}
		m.logger.Printf("%s: %d swaps inserted, %d duplicates", st.Name, res.Inserted[st.Name], res.Duplicates[st.Name])
	}
	return nil
}

// writeBatch stores batch atomically, falling back to single inserts when
// duplicates are tolerated.
func (m *Manager) writeBatch(ctx context.Context, store storage.SwapStore, batch []*domain.Swap) (int, int, error) {
	err := store.InsertBulk(ctx, batch)
	if err == nil {
		return len(batch), 0, nil
	}
	if !m.skipExisting || !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, 0, err
	}

	inserted, dups := 0, 0
	for _, s := range batch {
		err := store.Insert(ctx, s)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicateKey):
			dups++
		default:
			return inserted, dups, err
		}
	}
	return inserted, dups, nil
}

// IngestMetadata fetches token metadata and upserts it.
func (m *Manager) IngestMetadata(ctx context.Context) (int, error) {
	if m.metadataSource == nil || m.metadataStore == nil {
		return 0, nil
	}

	metas, err := m.metadataSource.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch metadata: %w", err)
	}

	n := 0
	for _, meta := range metas {
		if err := m.metadataStore.Upsert(ctx, meta); err != nil {
			return n, fmt.Errorf("upsert metadata %s: %w", meta.Symbol, err)
		}
		n++
	}
	if n > 0 {
		m.logger.Printf("metadata: %d tokens upserted", n)
	}
	return n, nil
}
