package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"token-flow-lab/internal/domain"
)

// pairsEnvelope is the pairs API response. Data is kept raw so its keys can be
// read in document order.
type pairsEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// decodePairs reads a `{"<otherToken>": TokenPair, ...}` object preserving key order.
// Records missing their token fields take them from the key and the query.
func decodePairs(data json.RawMessage, central string) ([]domain.TokenPair, error) {
	pairs := make([]domain.TokenPair, 0)
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return pairs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("data: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, _ := keyTok.(string)

		var p domain.TokenPair
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode pair %q: %w", key, err)
		}
		if p.OtherToken == "" {
			p.OtherToken = key
		}
		if p.CentralToken == "" {
			p.CentralToken = central
		}
		pairs = append(pairs, p)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read data end: %w", err)
	}
	return pairs, nil
}
