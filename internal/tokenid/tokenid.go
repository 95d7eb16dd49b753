// Package tokenid normalizes the identifiers a user can type for a central token:
// a ticker symbol ("weth", "USDC") or a Solana mint address in base58.
package tokenid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// MintLength is the decoded size of a Solana public key.
const MintLength = 32

// ErrEmpty is returned for blank identifiers.
var ErrEmpty = errors.New("empty token identifier")

// Kind classifies an identifier.
type Kind string

const (
	KindSymbol Kind = "symbol"
	KindMint   Kind = "mint"
)

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// DecodeMint decodes a base58 address and checks its length.
func DecodeMint(s string) ([]byte, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != MintLength {
		return nil, fmt.Errorf("mint must be %d bytes, got %d", MintLength, len(raw))
	}
	return raw, nil
}

// IsMint reports whether s decodes to a 32-byte public key.
// Tickers are valid base58 too but decode to far fewer bytes.
func IsMint(s string) bool {
	_, err := DecodeMint(s)
	return err == nil
}

// IsOnCurve reports whether the address is a point on ed25519. Program derived
// addresses are deliberately off-curve, so a false result marks a PDA.
func IsOnCurve(mint string) (bool, error) {
	raw, err := DecodeMint(mint)
	if err != nil {
		return false, err
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return false, nil
	}
	return true, nil
}

// Classify returns the kind of a non-empty identifier.
func Classify(s string) (Kind, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrEmpty
	}
	if IsMint(s) {
		return KindMint, nil
	}
	return KindSymbol, nil
}

// Resolver maps user input to the symbol used as central token.
// Mints are looked up in the metadata store; unknown mints are returned unchanged.
type Resolver struct {
	store storage.TokenMetadataStore
}

// NewResolver creates a Resolver. A nil store disables mint lookup.
func NewResolver(store storage.TokenMetadataStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the central token id for input.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	kind, err := Classify(input)
	if err != nil {
		return "", err
	}
	if kind == KindSymbol {
		return NormalizeSymbol(input), nil
	}

	mint := strings.TrimSpace(input)
	if r == nil || r.store == nil {
		return mint, nil
	}

	meta, err := r.store.GetByMint(ctx, mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return mint, nil
		}
		return "", fmt.Errorf("lookup mint %s: %w", mint, err)
	}
	return NormalizeSymbol(meta.Symbol), nil
}

// Metadata returns stored metadata for a resolved token, or nil when unknown.
func (r *Resolver) Metadata(ctx context.Context, token string) (*domain.TokenMetadata, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	var (
		meta *domain.TokenMetadata
		err  error
	)
	if IsMint(token) {
		meta, err = r.store.GetByMint(ctx, token)
	} else {
		meta, err = r.store.GetBySymbol(ctx, NormalizeSymbol(token))
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return meta, err
}
