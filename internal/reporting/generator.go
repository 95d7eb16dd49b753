package reporting

import (
	"sort"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/graph"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/tooltip"
)

// Input is everything a report is derived from. Frame may be nil.
type Input struct {
	Graph       graph.Graph
	Encoded     encoding.Encoded
	Window      domain.TimeWindow
	Mode        domain.LinkMode
	Legend      domain.Direction
	VolumeIndex int
	Frame       *layout.Frame
}

// FromView converts an explorer view into report input.
func FromView(v explorer.View) Input {
	return Input{
		Graph:       v.Graph,
		Encoded:     v.Encoded,
		Window:      v.Controls.Window,
		Mode:        v.Controls.Mode,
		Legend:      v.Controls.Legend,
		VolumeIndex: v.Controls.VolumeIndex,
		Frame:       v.Layout,
	}
}

// Generator produces reports.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from in.
func (g *Generator) Generate(in Input) *Report {
	r := &Report{
		GeneratedAt: g.now(),
		Central:     in.Graph.Central,
		Window:      in.Window,
		Mode:        in.Mode,
		Legend:      in.Legend,
		MinVolume:   graph.MinVolumeForIndex(in.VolumeIndex),
		Summary:     tooltip.ForNode(in.Graph, in.Graph.Central),
		Pairs:       make([]PairRow, 0, len(in.Encoded.Links)),
	}

	nodes := make(map[string]encoding.NodeStyle, len(in.Encoded.Nodes))
	for _, n := range in.Encoded.Nodes {
		nodes[n.ID] = n
	}
	positions := make(map[string]layout.FrameNode)
	if in.Frame != nil {
		for _, n := range in.Frame.Nodes {
			positions[n.ID] = n
		}
		r.Layout = &LayoutSummary{
			Ticks: in.Frame.Tick,
			State: in.Frame.State.String(),
			Alpha: in.Frame.Alpha,
		}
	}

	for _, ls := range in.Encoded.Links {
		token := ls.Source
		if token == in.Graph.Central {
			token = ls.Target
		}
		l, ok := in.Graph.LinkBetween(ls.Source, ls.Target)
		if !ok {
			continue
		}
		row := PairRow{
			Token:       token,
			VolumeUSD:   l.TotalVolumeUSD,
			Swaps:       l.TotalSwaps,
			InflowUSD:   l.CentralInflow,
			OutflowUSD:  l.CentralOutflow,
			InflowShare: ls.Ratio.InflowShare,
			Intensity:   ls.Ratio.Intensity,
			Dominant:    ls.Ratio.Dominant,
			Color:       ls.Color,
			StrokeWidth: ls.StrokeWidth,
			Radius:      nodes[token].Radius,
		}
		if p, ok := positions[token]; ok {
			row.X, row.Y, row.Positioned = p.X, p.Y, true
		}
		r.Pairs = append(r.Pairs, row)
	}

	sort.SliceStable(r.Pairs, func(i, j int) bool {
		if r.Pairs[i].VolumeUSD != r.Pairs[j].VolumeUSD {
			return r.Pairs[i].VolumeUSD > r.Pairs[j].VolumeUSD
		}
		return r.Pairs[i].Token < r.Pairs[j].Token
	})

	return r
}
