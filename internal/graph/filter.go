package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"token-flow-lab/internal/domain"
)

// VolumeBuckets are the selectable minimum-volume thresholds in USD, ascending.
var VolumeBuckets = []float64{0, 100, 1000, 10000, 50000, 100000, 500000, 1000000, 10000000}

// ErrUnknownMode is returned by ParseMode for unsupported values.
var ErrUnknownMode = errors.New("unknown link mode")

// MinVolumeForIndex returns the bucket threshold, clamping index into range.
func MinVolumeForIndex(index int) float64 {
	if index < 0 {
		index = 0
	}
	if index >= len(VolumeBuckets) {
		index = len(VolumeBuckets) - 1
	}
	return VolumeBuckets[index]
}

// VolumeIndexForValue returns the first bucket index whose threshold is >= value,
// or -1 when value exceeds the largest bucket.
func VolumeIndexForValue(value float64) int {
	for i, b := range VolumeBuckets {
		if b >= value {
			return i
		}
	}
	return -1
}

// ParseMode parses "all", "buy" or "sell" (case-insensitive). Empty means all.
func ParseMode(s string) (domain.LinkMode, error) {
	m := domain.LinkMode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return domain.LinkModeAll, nil
	}
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Options selects the filters applied by Filter.
type Options struct {
	VolumeIndex int
	Mode        domain.LinkMode
}

// Filter applies, in order: volume floor, direction mode, connectivity prune.
// The input graph is not modified.
func Filter(g Graph, opts Options) Graph {
	out := FilterByVolume(g, MinVolumeForIndex(opts.VolumeIndex))
	out.Links = FilterLinksByMode(out.Links, opts.Mode)
	return Prune(out)
}

// FilterByVolume drops nodes below minVolume and every link touching a dropped node.
func FilterByVolume(g Graph, minVolume float64) Graph {
	out := Graph{
		Central: g.Central,
		Nodes:   make([]Node, 0, len(g.Nodes)),
		Links:   make([]Link, 0, len(g.Links)),
	}

	kept := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.TotalVolumeUSD >= minVolume {
			out.Nodes = append(out.Nodes, n)
			kept[n.ID] = struct{}{}
		}
	}

	for _, l := range g.Links {
		_, okSource := kept[l.Source]
		_, okTarget := kept[l.Target]
		if okSource && okTarget {
			out.Links = append(out.Links, l)
		}
	}

	return out
}

// FilterLinksByMode keeps links whose central-perspective flow matches mode.
// buy keeps outflowShare <= 0.5, sell keeps outflowShare > 0.5; links with no
// flow are dropped by both. all (or an unknown mode) is the identity.
func FilterLinksByMode(links []Link, mode domain.LinkMode) []Link {
	if mode != domain.LinkModeBuy && mode != domain.LinkModeSell {
		out := make([]Link, len(links))
		copy(out, links)
		return out
	}

	out := make([]Link, 0, len(links))
	for _, l := range links {
		total := l.CentralTotal()
		if !(total > 0) {
			continue
		}
		outflowShare := l.CentralOutflow / total
		if mode == domain.LinkModeBuy && outflowShare <= 0.5 {
			out = append(out, l)
		} else if mode == domain.LinkModeSell && outflowShare > 0.5 {
			out = append(out, l)
		}
	}
	return out
}

// Prune keeps exactly the nodes referenced by the graph's links, preserving
// node order. The central node survives only if a link still touches it.
func Prune(g Graph) Graph {
	referenced := make(map[string]struct{}, len(g.Links)*2)
	for _, l := range g.Links {
		referenced[l.Source] = struct{}{}
		referenced[l.Target] = struct{}{}
	}

	out := Graph{
		Central: g.Central,
		Nodes:   make([]Node, 0, len(referenced)),
		Links:   make([]Link, len(g.Links)),
	}
	copy(out.Links, g.Links)
	for _, n := range g.Nodes {
		if _, ok := referenced[n.ID]; ok {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out
}

// Fingerprint returns a stable digest of the graph's content. Two graphs with
// the same fingerprint render identically, so callers use it to skip layout restarts.
func Fingerprint(g Graph) string {
	h := sha256.New()
	var buf [8]byte
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	h.Write([]byte(g.Central))
	h.Write([]byte{0})
	for _, n := range g.Nodes {
		h.Write([]byte(n.ID))
		h.Write([]byte{0})
		writeFloat(n.TotalVolumeUSD)
		writeFloat(float64(n.TotalSwaps))
	}
	h.Write([]byte{1})
	for _, l := range g.Links {
		h.Write([]byte(l.Source))
		h.Write([]byte{0})
		h.Write([]byte(l.Target))
		h.Write([]byte{0})
		writeFloat(l.CentralInflow)
		writeFloat(l.CentralOutflow)
		writeFloat(l.TotalVolumeUSD)
	}
	return hex.EncodeToString(h.Sum(nil))
}
