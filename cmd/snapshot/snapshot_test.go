package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/reporting"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/tokenid"
)

type staticSource struct {
	pairs []domain.TokenPair
	err   error
	got   []source.Query
}

func (s *staticSource) FetchPairs(_ context.Context, q source.Query) ([]domain.TokenPair, error) {
	s.got = append(s.got, q)
	return s.pairs, s.err
}

func testBuilder(src source.PairSource) *builder {
	return &builder{
		fetcher:  source.NewFetcher(src, log.New(io.Discard, "", 0)),
		resolver: tokenid.NewResolver(nil),
		encoder:  encoding.New(nil),
		layout:   layout.DefaultConfig(),
	}
}

func testRequest() request {
	return request{
		Token:    "weth",
		Limit:    50,
		Window:   domain.Window24h,
		Mode:     domain.LinkModeAll,
		Legend:   domain.DirectionInflow,
		MaxTicks: 500,
	}
}

func testPairs() []domain.TokenPair {
	return []domain.TokenPair{
		{CentralToken: "WETH", OtherToken: "USDC", TotalVolumeUSD: 1_000_000, TotalSwaps: 100, CentralTokenInflowUSD: 700_000, CentralTokenOutflowUSD: 300_000},
		{CentralToken: "WETH", OtherToken: "DAI", TotalVolumeUSD: 10_000, TotalSwaps: 10, CentralTokenInflowUSD: 1_000, CentralTokenOutflowUSD: 9_000},
		{CentralToken: "WETH", OtherToken: "BONK", TotalVolumeUSD: 50, TotalSwaps: 1, CentralTokenInflowUSD: 25, CentralTokenOutflowUSD: 25},
	}
}

func TestBuild(t *testing.T) {
	src := &staticSource{pairs: testPairs()}
	snap, err := testBuilder(src).build(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, src.got, 1)
	assert.Equal(t, "WETH", src.got[0].Token)
	assert.Equal(t, 3, snap.Stats.Records)
	assert.Len(t, snap.Graph.Nodes, 4)
	assert.Len(t, snap.Encoded.Links, 3)

	require.NotNil(t, snap.Frame)
	assert.Len(t, snap.Frame.Nodes, 4)
	assert.Greater(t, snap.Frame.Tick, 0)
}

func TestBuild_VolumeFloorAndMode(t *testing.T) {
	req := testRequest()
	req.VolumeIndex = 2 // >= 1000
	req.Mode = domain.LinkModeSell

	snap, err := testBuilder(&staticSource{pairs: testPairs()}).build(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, snap.Graph.Links, 1)
	assert.Equal(t, "DAI", snap.Graph.Links[0].Source)
}

func TestBuild_SkipLayout(t *testing.T) {
	req := testRequest()
	req.MaxTicks = 0

	snap, err := testBuilder(&staticSource{pairs: testPairs()}).build(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, snap.Frame)
}

func TestBuild_Empty(t *testing.T) {
	snap, err := testBuilder(&staticSource{}).build(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, snap.Graph.Empty())
	assert.Nil(t, snap.Frame)
}

func TestBuild_Errors(t *testing.T) {
	req := testRequest()
	req.Limit = 7
	_, err := testBuilder(&staticSource{}).build(context.Background(), req)
	assert.ErrorIs(t, err, explorer.ErrInvalidControl)

	req = testRequest()
	req.Token = " "
	_, err = testBuilder(&staticSource{}).build(context.Background(), req)
	assert.ErrorIs(t, err, tokenid.ErrEmpty)

	fetchErr := &source.FetchError{Status: 502, Message: "bad gateway"}
	_, err = testBuilder(&staticSource{err: fetchErr}).build(context.Background(), testRequest())
	assert.ErrorIs(t, err, source.ErrDataFetch)
	var fe *source.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestWriteFiles(t *testing.T) {
	req := testRequest()
	snap, err := testBuilder(&staticSource{pairs: testPairs()}).build(context.Background(), req)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := writeFiles(dir, snap, snap.report(reporting.NewGenerator(), req))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	md, err := os.ReadFile(filepath.Join(dir, "snapshot.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Token Flow Snapshot: WETH"))

	csv, err := os.ReadFile(filepath.Join(dir, "snapshot.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(csv)), "\n"), 4)

	raw, err := os.ReadFile(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	var decoded snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "WETH", decoded.Graph.Central)
	require.NotNil(t, decoded.Frame)
}
