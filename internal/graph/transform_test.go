package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-flow-lab/internal/domain"
)

func wethPairs() []domain.TokenPair {
	return []domain.TokenPair{
		{
			CentralToken:           "WETH",
			OtherToken:             "USDC",
			TotalVolumeUSD:         1_000_000,
			TotalSwaps:             120,
			CentralTokenInflowUSD:  800_000,
			CentralTokenOutflowUSD: 200_000,
			OtherTokenInflowUSD:    200_000,
			OtherTokenOutflowUSD:   800_000,
		},
		{
			CentralToken:           "WETH",
			OtherToken:             "DAI",
			TotalVolumeUSD:         10_000,
			TotalSwaps:             8,
			CentralTokenInflowUSD:  1_000,
			CentralTokenOutflowUSD: 9_000,
			OtherTokenInflowUSD:    9_000,
			OtherTokenOutflowUSD:   1_000,
		},
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	g := Build(nil)

	assert.Empty(t, g.Central)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Links)
	assert.Len(t, g.Nodes, 0)
	assert.Len(t, g.Links, 0)
	assert.True(t, g.Empty())
}

func TestBuild_CentralAggregatesAllPairs(t *testing.T) {
	g := Build(wethPairs())

	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Links, 2)
	assert.Equal(t, "WETH", g.Central)

	central := g.Nodes[0]
	assert.True(t, central.IsCentral)
	assert.Equal(t, "WETH", central.ID)
	assert.InDelta(t, 1_010_000, central.TotalVolumeUSD, 1e-9)
	assert.Equal(t, int64(128), central.TotalSwaps)

	usdc, ok := g.Node("USDC")
	require.True(t, ok)
	assert.False(t, usdc.IsCentral)
	assert.InDelta(t, 1_000_000, usdc.TotalVolumeUSD, 1e-9)
}

func TestBuild_LinksPointFromOtherToCentral(t *testing.T) {
	g := Build(wethPairs())

	for _, l := range g.Links {
		assert.Equal(t, "WETH", l.Target)
		assert.NotEqual(t, "WETH", l.Source)
	}

	l, ok := g.LinkBetween("WETH", "USDC")
	require.True(t, ok)
	assert.InDelta(t, 800_000, l.CentralInflow, 1e-9)
	assert.InDelta(t, 200_000, l.CentralOutflow, 1e-9)
	assert.InDelta(t, 200_000, l.Inflow, 1e-9)
	assert.InDelta(t, 800_000, l.Outflow, 1e-9)
}

func TestBuild_DuplicateOtherTokenKeepsFirstNode(t *testing.T) {
	pairs := append(wethPairs(), domain.TokenPair{
		CentralToken:   "WETH",
		OtherToken:     "USDC",
		TotalVolumeUSD: 5,
		TotalSwaps:     1,
	})

	g, stats := BuildWithStats(pairs)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Links, 3, "one link per record")

	usdc, _ := g.Node("USDC")
	assert.InDelta(t, 1_000_000, usdc.TotalVolumeUSD, 1e-9, "first-seen attributes win")
}

func TestBuild_SkipsForeignCentralAndSelfLoops(t *testing.T) {
	pairs := append(wethPairs(),
		domain.TokenPair{CentralToken: "WBTC", OtherToken: "USDT", TotalVolumeUSD: 100},
		domain.TokenPair{CentralToken: "WETH", OtherToken: "WETH", TotalVolumeUSD: 100},
		domain.TokenPair{CentralToken: "WETH", OtherToken: "", TotalVolumeUSD: 100},
	)

	g, stats := BuildWithStats(pairs)

	assert.Equal(t, 3, stats.Skipped)
	assert.Len(t, g.Links, 2)
	central, _ := g.Node("WETH")
	assert.InDelta(t, 1_010_000, central.TotalVolumeUSD, 1e-9)
}

func TestBuild_NegativeNumbersTreatedAsZero(t *testing.T) {
	g := Build([]domain.TokenPair{
		{CentralToken: "WETH", OtherToken: "PEPE", TotalVolumeUSD: -10, CentralTokenInflowUSD: -1},
	})

	require.Len(t, g.Links, 1)
	assert.Zero(t, g.Links[0].CentralInflow)
	assert.Zero(t, g.Nodes[0].TotalVolumeUSD)
}
