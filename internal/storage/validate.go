package storage

import (
	"fmt"
	"math"
	"strings"

	"token-flow-lab/internal/domain"
)

// ValidateSwap checks the fields every swap store requires.
func ValidateSwap(s *domain.Swap) error {
	if s == nil {
		return ErrInvalidInput
	}
	if s.TxHash == "" || s.TokenIn == "" || s.TokenOut == "" {
		return fmt.Errorf("%w: tx hash and both tokens are required", ErrInvalidInput)
	}
	if s.EventIndex < 0 || s.Timestamp < 0 {
		return fmt.Errorf("%w: negative event index or timestamp", ErrInvalidInput)
	}
	if s.AmountUSD < 0 || math.IsNaN(s.AmountUSD) || math.IsInf(s.AmountUSD, 0) {
		return fmt.Errorf("%w: amount usd %v", ErrInvalidInput, s.AmountUSD)
	}
	return nil
}

// ValidateMetadata checks metadata before it is written.
func ValidateMetadata(m *domain.TokenMetadata) error {
	if m == nil || strings.TrimSpace(m.Symbol) == "" {
		return ErrInvalidInput
	}
	if m.Decimals < 0 {
		return fmt.Errorf("%w: negative decimals", ErrInvalidInput)
	}
	return nil
}
