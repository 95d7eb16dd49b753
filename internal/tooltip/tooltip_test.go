package tooltip

import (
	"math"
	"testing"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/graph"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testGraph() graph.Graph {
	return graph.Build([]domain.TokenPair{
		{
			CentralToken: "WETH", OtherToken: "USDC", TotalVolumeUSD: 1_000_000, TotalSwaps: 10,
			CentralTokenInflowUSD: 800_000, CentralTokenOutflowUSD: 200_000,
			OtherTokenInflowUSD: 1, OtherTokenOutflowUSD: 2,
		},
		{
			CentralToken: "WETH", OtherToken: "DAI", TotalVolumeUSD: 10_000, TotalSwaps: 5,
			CentralTokenInflowUSD: 1_000, CentralTokenOutflowUSD: 9_000,
		},
	})
}

func TestForNode_Central(t *testing.T) {
	s := ForNode(testGraph(), "WETH")

	if !s.Found || !s.IsCentral {
		t.Fatalf("expected found central summary, got %+v", s)
	}
	if !near(s.InflowUSD, 801_000) || !near(s.OutflowUSD, 209_000) {
		t.Errorf("flows = %v/%v, want 801000/209000", s.InflowUSD, s.OutflowUSD)
	}
	if !near(s.TotalVolumeUSD, 1_010_000) || s.TotalSwaps != 15 || s.Links != 2 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if !near(s.InflowPercent+s.OutflowPercent, 100) {
		t.Errorf("percentages do not sum to 100: %v + %v", s.InflowPercent, s.OutflowPercent)
	}
}

func TestForNode_OtherUsesCentralPerspective(t *testing.T) {
	s := ForNode(testGraph(), "USDC")

	if !s.Found || s.IsCentral {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Counterparty != "WETH" {
		t.Errorf("counterparty = %q, want WETH", s.Counterparty)
	}
	if !near(s.InflowPercent, 80) || !near(s.OutflowPercent, 20) {
		t.Errorf("percent = %v/%v, want 80/20", s.InflowPercent, s.OutflowPercent)
	}
	if !near(s.InflowUSD, 800_000) {
		t.Errorf("inflow = %v, want central-perspective 800000", s.InflowUSD)
	}
}

func TestForNode_MissingLinkIsNeutral(t *testing.T) {
	g := testGraph()
	g.Links = g.Links[:1]

	s := ForNode(g, "DAI")
	if s.Found {
		t.Errorf("expected not found, got %+v", s)
	}
	if s.InflowPercent != 0 || s.OutflowPercent != 0 {
		t.Errorf("expected zero percentages, got %+v", s)
	}
}

func TestForNode_UnknownAndEmpty(t *testing.T) {
	if ForNode(testGraph(), "PEPE").Found {
		t.Error("unknown node should not be found")
	}
	if ForNode(graph.Build(nil), "WETH").Found {
		t.Error("empty graph should not produce a summary")
	}
}

func TestForPair_ZeroTotals(t *testing.T) {
	s := ForPair(graph.Link{Source: "A", Target: "C"})
	if !s.Found {
		t.Fatal("pair summary should be found")
	}
	if s.InflowPercent != 0 || s.OutflowPercent != 0 {
		t.Errorf("expected zero percentages, got %+v", s)
	}
}
