package ingestion

import (
	"cmp"
	"errors"
	"slices"

	"token-flow-lab/internal/domain"
)

// ErrInvalidOrdering is returned when swaps are not in write order.
var ErrInvalidOrdering = errors.New("swaps are not in deterministic order")

// SortSwaps puts swaps in write order: timestamp, then tx hash, then event index.
func SortSwaps(swaps []*domain.Swap) {
	slices.SortStableFunc(swaps, compareSwaps)
}

// ValidateSwapOrdering returns ErrInvalidOrdering unless swaps are strictly
// increasing in write order.
func ValidateSwapOrdering(swaps []*domain.Swap) error {
	for i := 1; i < len(swaps); i++ {
		if compareSwaps(swaps[i-1], swaps[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// DedupeSwaps drops swaps whose (tx hash, event index) already appeared
// earlier in the slice and returns the survivors with the number dropped.
func DedupeSwaps(swaps []*domain.Swap) ([]*domain.Swap, int) {
	type key struct {
		tx    string
		index int
	}
	seen := make(map[key]struct{}, len(swaps))
	out := swaps[:0:0]
	for _, s := range swaps {
		k := key{s.TxHash, s.EventIndex}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out, len(swaps) - len(out)
}

func compareSwaps(a, b *domain.Swap) int {
	return cmp.Or(
		cmp.Compare(a.Timestamp, b.Timestamp),
		cmp.Compare(a.TxHash, b.TxHash),
		cmp.Compare(a.EventIndex, b.EventIndex),
	)
}
