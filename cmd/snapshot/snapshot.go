package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/graph"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/reporting"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/tokenid"
)

// request selects one snapshot.
type request struct {
	Token       string
	Limit       int
	Window      domain.TimeWindow
	VolumeIndex int
	Mode        domain.LinkMode
	Legend      domain.Direction
	MaxTicks    int
}

// snapshot is a fetched, filtered, encoded and laid out graph.
type snapshot struct {
	Query   source.Query     `json:"query"`
	Stats   graph.BuildStats `json:"stats"`
	Graph   graph.Graph      `json:"graph"`
	Encoded encoding.Encoded `json:"encoded"`
	Frame   *layout.Frame    `json:"frame,omitempty"`
}

// builder runs the pipeline once.
type builder struct {
	fetcher  *source.Fetcher
	resolver *tokenid.Resolver
	encoder  *encoding.Encoder
	loader   explorer.ImageLoader
	layout   layout.Config
}

func (b *builder) build(ctx context.Context, req request) (*snapshot, error) {
	update := explorer.Update{
		Limit:       &req.Limit,
		Window:      &req.Window,
		VolumeIndex: &req.VolumeIndex,
		Mode:        &req.Mode,
		Legend:      &req.Legend,
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	token, err := b.resolver.Resolve(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	res, err := b.fetcher.Fetch(ctx, source.Query{Token: token, Limit: req.Limit, Window: req.Window})
	if err != nil {
		return nil, fmt.Errorf("fetch pairs: %w", err)
	}

	if b.loader != nil && len(res.Pairs) > 0 {
		symbols := []string{res.Pairs[0].CentralToken}
		for _, p := range res.Pairs {
			symbols = append(symbols, p.OtherToken)
		}
		n, err := b.loader.Load(ctx, symbols)
		observability.RecordImagesLoaded(n)
		if err != nil {
			// images are decoration only
			fmt.Fprintf(os.Stderr, "Warning: load token images: %v\n", err)
		}
	}

	g, stats := graph.BuildWithStats(res.Pairs)
	observability.RecordGraphBuild(len(g.Nodes), stats.Skipped, stats.Duplicates)

	filtered := graph.Filter(g, graph.Options{VolumeIndex: req.VolumeIndex, Mode: req.Mode})
	observability.RecordFilterRun(string(req.Mode))

	snap := &snapshot{
		Query:   res.Query,
		Stats:   stats,
		Graph:   filtered,
		Encoded: b.encoder.Encode(filtered, req.Window, req.Legend),
	}

	if !filtered.Empty() && req.MaxTicks > 0 {
		sim := layout.NewSimulation(snap.Encoded, b.layout)
		sim.Run(req.MaxTicks)
		observability.RecordLayoutRecoveries(sim.Recovered())
		frame := sim.Snapshot(res.Generation)
		snap.Frame = &frame
	}
	return snap, nil
}

// report converts the snapshot for the renderers.
func (s *snapshot) report(gen *reporting.Generator, req request) *reporting.Report {
	return gen.Generate(reporting.Input{
		Graph:       s.Graph,
		Encoded:     s.Encoded,
		Window:      req.Window,
		Mode:        req.Mode,
		Legend:      req.Legend,
		VolumeIndex: req.VolumeIndex,
		Frame:       s.Frame,
	})
}

// writeFiles writes snapshot.{md,csv,json} to dir and returns their paths.
func writeFiles(dir string, snap *snapshot, r *reporting.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{"snapshot.md", []byte(reporting.RenderMarkdown(r))},
		{"snapshot.csv", []byte(reporting.RenderCSV(r))},
		{"snapshot.json", data},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, f.data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
