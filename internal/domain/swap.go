package domain

// Swap represents a single executed swap between two tokens.
// Corresponds to swaps table in PostgreSQL and ClickHouse.
type Swap struct {
	ID         int64   // BIGSERIAL primary key (PostgreSQL only)
	TxHash     string  // transaction hash / signature
	EventIndex int     // index of swap within transaction
	Timestamp  int64   // Unix timestamp in milliseconds
	TokenIn    string  // token sent by the trader
	TokenOut   string  // token received by the trader
	AmountIn   float64 // TokenIn amount
	AmountOut  float64 // TokenOut amount
	AmountUSD  float64 // USD value of the swap
	CreatedAt  int64   // record creation timestamp (ms)
}

// Involves reports whether the swap has token on either side.
func (s *Swap) Involves(token string) bool {
	return s.TokenIn == token || s.TokenOut == token
}

// Counterparty returns the token on the other side of token, or "" if the swap
// does not involve token or is a self-swap.
func (s *Swap) Counterparty(token string) string {
	switch {
	case s.TokenIn == token && s.TokenOut != token:
		return s.TokenOut
	case s.TokenOut == token && s.TokenIn != token:
		return s.TokenIn
	default:
		return ""
	}
}
