package graph

import "token-flow-lab/internal/domain"

// BuildStats reports records the transformer could not use.
type BuildStats struct {
	Records    int // input records
	Skipped    int // records with a different central token, empty or self-referencing other token
	Duplicates int // records whose other token was already seen
}

// Build converts pair records into a graph rooted at the first record's central token.
// Empty input yields an empty graph with no central node.
func Build(pairs []domain.TokenPair) Graph {
	g, _ := BuildWithStats(pairs)
	return g
}

// BuildWithStats is Build plus counters describing dropped/duplicate records.
func BuildWithStats(pairs []domain.TokenPair) (Graph, BuildStats) {
	stats := BuildStats{Records: len(pairs)}
	if len(pairs) == 0 {
		return Graph{Nodes: []Node{}, Links: []Link{}}, stats
	}

	central := pairs[0].CentralToken

	accepted := make([]domain.TokenPair, 0, len(pairs))
	for _, p := range pairs {
		if p.CentralToken != central || p.OtherToken == "" || p.OtherToken == central {
			stats.Skipped++
			continue
		}
		accepted = append(accepted, p.Sanitize())
	}

	g := Graph{
		Central: central,
		Nodes:   make([]Node, 0, len(accepted)+1),
		Links:   make([]Link, 0, len(accepted)),
	}
	if len(accepted) == 0 {
		return g, stats
	}

	centralNode := Node{ID: central, IsCentral: true}
	for _, p := range accepted {
		centralNode.TotalVolumeUSD += p.TotalVolumeUSD
		centralNode.TotalSwaps += p.TotalSwaps
	}
	g.Nodes = append(g.Nodes, centralNode)

	seen := make(map[string]struct{}, len(accepted))
	for _, p := range accepted {
		if _, ok := seen[p.OtherToken]; ok {
			stats.Duplicates++
		} else {
			seen[p.OtherToken] = struct{}{}
			g.Nodes = append(g.Nodes, Node{
				ID:             p.OtherToken,
				TotalVolumeUSD: p.TotalVolumeUSD,
				TotalSwaps:     p.TotalSwaps,
			})
		}

		g.Links = append(g.Links, Link{
			Source:         p.OtherToken,
			Target:         central,
			Inflow:         p.OtherTokenInflowUSD,
			Outflow:        p.OtherTokenOutflowUSD,
			CentralInflow:  p.CentralTokenInflowUSD,
			CentralOutflow: p.CentralTokenOutflowUSD,
			TotalVolumeUSD: p.TotalVolumeUSD,
			TotalSwaps:     p.TotalSwaps,
		})
	}

	return g, stats
}
