package domain

// TokenMetadata represents display metadata for a token.
// Corresponds to token_metadata table in PostgreSQL.
type TokenMetadata struct {
	Symbol    string  // PK, upper-case ticker
	Mint      string  // base58 mint address (unique, may be empty for non-Solana tokens)
	Name      *string // token name (nullable)
	Decimals  int     // token decimals
	ImageURL  *string // logo URL (nullable)
	UpdatedAt int64   // last refresh timestamp (ms)
}
