package reporting

import (
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/tooltip"
)

// Report is a point-in-time description of one filtered flow graph.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Central     string
	Window      domain.TimeWindow
	Mode        domain.LinkMode
	Legend      domain.Direction
	MinVolume   float64 // volume floor applied by the filter

	// Central token totals across the surviving links
	Summary tooltip.Summary

	// Pairs (sorted by volume desc, token asc)
	Pairs []PairRow

	// Layout, nil when the graph was not laid out
	Layout *LayoutSummary
}

// PairRow describes one link, central-token perspective.
type PairRow struct {
	Token       string
	VolumeUSD   float64
	Swaps       int64
	InflowUSD   float64
	OutflowUSD  float64
	InflowShare float64
	Intensity   float64
	Dominant    domain.Direction
	Color       string
	StrokeWidth float64
	Radius      float64
	X           float64
	Y           float64
	Positioned  bool
}

// LayoutSummary records where the layout stopped.
type LayoutSummary struct {
	Ticks int
	State string
	Alpha float64
}

// InflowDominant counts pairs whose dominant direction is inflow.
func (r *Report) InflowDominant() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Dominant == domain.DirectionInflow {
			n++
		}
	}
	return n
}
