// Package tooltip computes hover summaries for nodes and pairs.
//
// All figures use the central token's perspective, the same one the link
// colour is derived from.
package tooltip

import "token-flow-lab/internal/graph"

// Summary is the hover content for a node or a pair.
type Summary struct {
	Found          bool    `json:"found"`
	Token          string  `json:"token"`
	IsCentral      bool    `json:"isCentral"`
	Counterparty   string  `json:"counterparty,omitempty"`
	InflowUSD      float64 `json:"inflowUSD"`
	OutflowUSD     float64 `json:"outflowUSD"`
	TotalVolumeUSD float64 `json:"totalVolumeUSD"`
	TotalSwaps     int64   `json:"totalSwaps"`
	InflowPercent  float64 `json:"inflowPercent"`
	OutflowPercent float64 `json:"outflowPercent"`
	Links          int     `json:"links"`
}

// ForNode summarises nodeID within g. The central node aggregates every link;
// any other node reports its link to the central token. A node without such
// a link yields Summary{Found: false}.
func ForNode(g graph.Graph, nodeID string) Summary {
	if nodeID == "" {
		return Summary{}
	}

	if nodeID == g.Central {
		s := Summary{Found: true, Token: nodeID, IsCentral: true}
		for _, l := range g.Links {
			if !l.Touches(g.Central) {
				continue
			}
			s.InflowUSD += l.CentralInflow
			s.OutflowUSD += l.CentralOutflow
			s.TotalVolumeUSD += l.TotalVolumeUSD
			s.TotalSwaps += l.TotalSwaps
			s.Links++
		}
		if s.Links == 0 {
			return Summary{Token: nodeID, IsCentral: true}
		}
		s.fillPercents()
		return s
	}

	l, ok := g.LinkBetween(nodeID, g.Central)
	if !ok {
		return Summary{Token: nodeID}
	}
	s := ForPair(l)
	s.Token = nodeID
	s.Counterparty = l.Other(nodeID)
	return s
}

// ForPair summarises a single link.
func ForPair(l graph.Link) Summary {
	s := Summary{
		Found:          true,
		Token:          l.Source,
		Counterparty:   l.Target,
		InflowUSD:      l.CentralInflow,
		OutflowUSD:     l.CentralOutflow,
		TotalVolumeUSD: l.TotalVolumeUSD,
		TotalSwaps:     l.TotalSwaps,
		Links:          1,
	}
	s.fillPercents()
	return s
}

func (s *Summary) fillPercents() {
	total := s.InflowUSD + s.OutflowUSD
	if !(total > 0) {
		return
	}
	s.InflowPercent = s.InflowUSD / total * 100
	s.OutflowPercent = s.OutflowUSD / total * 100
}
