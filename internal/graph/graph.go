// Package graph builds the logical token-flow graph from pair records and
// reduces it through the volume / direction / connectivity filters.
//
// Links here are "logical": endpoints are token ids, never positioned nodes.
// Positions belong to the layout package.
package graph

import "token-flow-lab/internal/flow"

// Node is a token in the graph, keyed by symbol.
type Node struct {
	ID             string  `json:"id"`
	IsCentral      bool    `json:"isCentral"`
	TotalVolumeUSD float64 `json:"totalVolumeUSD"`
	TotalSwaps     int64   `json:"totalSwaps"`
}

// Link connects an other token (Source) to the central token (Target).
type Link struct {
	Source         string  `json:"source"`
	Target         string  `json:"target"`
	Inflow         float64 `json:"inflow"`         // other-token perspective
	Outflow        float64 `json:"outflow"`        // other-token perspective
	CentralInflow  float64 `json:"centralInflow"`  // central-token perspective
	CentralOutflow float64 `json:"centralOutflow"` // central-token perspective
	TotalVolumeUSD float64 `json:"totalVolumeUSD"`
	TotalSwaps     int64   `json:"totalSwaps"`
}

// Touches reports whether id is either endpoint.
func (l Link) Touches(id string) bool {
	return l.Source == id || l.Target == id
}

// Connects reports whether the link joins a and b in either direction.
func (l Link) Connects(a, b string) bool {
	return (l.Source == a && l.Target == b) || (l.Source == b && l.Target == a)
}

// Other returns the endpoint opposite to id.
func (l Link) Other(id string) string {
	if l.Source == id {
		return l.Target
	}
	return l.Source
}

// CentralTotal returns CentralInflow + CentralOutflow.
func (l Link) CentralTotal() float64 {
	return l.CentralInflow + l.CentralOutflow
}

// Ratio computes the link's flow ratio from the central perspective.
func (l Link) Ratio(p flow.Params, timeScale float64) flow.Ratio {
	return p.Compute(l.CentralInflow, l.CentralOutflow, timeScale)
}

// Graph is an immutable snapshot of nodes and links around one central token.
type Graph struct {
	Central string `json:"central"`
	Nodes   []Node `json:"nodes"`
	Links   []Link `json:"links"`
}

// Empty reports whether the graph has no nodes.
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// LinkBetween returns the first link joining a and b.
func (g Graph) LinkBetween(a, b string) (Link, bool) {
	for _, l := range g.Links {
		if l.Connects(a, b) {
			return l, true
		}
	}
	return Link{}, false
}

// MaxNodeVolume returns the largest node volume, or 0 for an empty graph.
func (g Graph) MaxNodeVolume() float64 {
	var max float64
	for _, n := range g.Nodes {
		if n.TotalVolumeUSD > max {
			max = n.TotalVolumeUSD
		}
	}
	return max
}
