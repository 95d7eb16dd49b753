package ingestion

import (
	"context"

	"token-flow-lab/internal/domain"
)

// SwapSource provides raw swaps. Swaps may be unordered; Manager enforces
// deterministic ordering.
type SwapSource interface {
	Fetch(ctx context.Context) ([]*domain.Swap, error)
}

// MetadataSource provides token metadata.
type MetadataSource interface {
	Fetch(ctx context.Context) ([]*domain.TokenMetadata, error)
}
