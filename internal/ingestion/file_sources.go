package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"token-flow-lab/internal/domain"
)

// swapRecord is the on-disk form of a swap.
type swapRecord struct {
	TxHash     string  `json:"txHash"`
	EventIndex int     `json:"eventIndex"`
	Timestamp  int64   `json:"timestamp"` // Unix ms
	TokenIn    string  `json:"tokenIn"`
	TokenOut   string  `json:"tokenOut"`
	AmountIn   float64 `json:"amountIn"`
	AmountOut  float64 `json:"amountOut"`
	AmountUSD  float64 `json:"amountUSD"`
}

// metadataRecord is the on-disk form of token metadata.
type metadataRecord struct {
	Symbol   string  `json:"symbol"`
	Mint     string  `json:"mint"`
	Name     *string `json:"name"`
	Decimals int     `json:"decimals"`
	ImageURL *string `json:"imageUrl"`
}

// FileSwapSource reads swaps from a JSON file holding either one array or a
// stream of objects (JSON lines).
type FileSwapSource struct {
	path string
}

// NewFileSwapSource creates a source reading path.
func NewFileSwapSource(path string) *FileSwapSource {
	return &FileSwapSource{path: path}
}

// Fetch reads and decodes the whole file.
func (s *FileSwapSource) Fetch(ctx context.Context) ([]*domain.Swap, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open swaps file: %w", err)
	}
	defer f.Close()

	return ReadSwaps(ctx, f)
}

// ReadSwaps decodes swaps from r.
func ReadSwaps(ctx context.Context, r io.Reader) ([]*domain.Swap, error) {
	var swaps []*domain.Swap
	err := decodeRecords(ctx, r, func(dec *json.Decoder) error {
		var rec swapRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		swaps = append(swaps, &domain.Swap{
			TxHash:     rec.TxHash,
			EventIndex: rec.EventIndex,
			Timestamp:  rec.Timestamp,
			TokenIn:    rec.TokenIn,
			TokenOut:   rec.TokenOut,
			AmountIn:   rec.AmountIn,
			AmountOut:  rec.AmountOut,
			AmountUSD:  rec.AmountUSD,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode swaps: %w", err)
	}
	return swaps, nil
}

// FileMetadataSource reads token metadata from a JSON file.
type FileMetadataSource struct {
	path string
}

// NewFileMetadataSource creates a source reading path.
func NewFileMetadataSource(path string) *FileMetadataSource {
	return &FileMetadataSource{path: path}
}

// Fetch reads and decodes the whole file.
func (s *FileMetadataSource) Fetch(ctx context.Context) ([]*domain.TokenMetadata, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	return ReadMetadata(ctx, f)
}

// ReadMetadata decodes token metadata from r.
func ReadMetadata(ctx context.Context, r io.Reader) ([]*domain.TokenMetadata, error) {
	var out []*domain.TokenMetadata
	err := decodeRecords(ctx, r, func(dec *json.Decoder) error {
		var rec metadataRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		out = append(out, &domain.TokenMetadata{
			Symbol:   rec.Symbol,
			Mint:     rec.Mint,
			Name:     rec.Name,
			Decimals: rec.Decimals,
			ImageURL: rec.ImageURL,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}

// decodeRecords calls next once per record. Input is either a JSON array or
// whitespace-separated objects.
func decodeRecords(ctx context.Context, r io.Reader, next func(*json.Decoder) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(br)
	array := first == '['
	if array {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}

	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if array && !dec.More() {
			break
		}
		if err := next(dec); err != nil {
			if !array && errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d: %w", n, err)
		}
	}

	// closing bracket
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.Discard(1); err != nil {
			return 0, err
		}
	}
}
