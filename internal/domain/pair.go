package domain

import "math"

// TokenPair represents aggregated trading flow between a central token and one
// counterparty token over a time window.
// Corresponds to one entry of the token-pairs API response.
type TokenPair struct {
	CentralToken           string  `json:"centralToken"`
	OtherToken             string  `json:"otherToken"`
	TotalVolumeUSD         float64 `json:"totalVolumeUSD"`
	TotalSwaps             int64   `json:"totalSwaps"`
	CentralTokenInflowUSD  float64 `json:"centralTokenInflowUSD"`  // USD flowing into the central token
	CentralTokenOutflowUSD float64 `json:"centralTokenOutflowUSD"` // USD flowing out of the central token
	OtherTokenInflowUSD    float64 `json:"otherTokenInflowUSD"`
	OtherTokenOutflowUSD   float64 `json:"otherTokenOutflowUSD"`
}

// Sanitize returns a copy with negative or non-finite numeric fields replaced by zero.
func (p TokenPair) Sanitize() TokenPair {
	p.TotalVolumeUSD = nonNegative(p.TotalVolumeUSD)
	if p.TotalSwaps < 0 {
		p.TotalSwaps = 0
	}
	p.CentralTokenInflowUSD = nonNegative(p.CentralTokenInflowUSD)
	p.CentralTokenOutflowUSD = nonNegative(p.CentralTokenOutflowUSD)
	p.OtherTokenInflowUSD = nonNegative(p.OtherTokenInflowUSD)
	p.OtherTokenOutflowUSD = nonNegative(p.OtherTokenOutflowUSD)
	return p
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
