package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Token Flow Snapshot: %s\n\n", r.Central))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- Window: %s\n", r.Window))
	sb.WriteString(fmt.Sprintf("- Mode: %s\n", r.Mode))
	sb.WriteString(fmt.Sprintf("- Minimum volume: $%s\n", formatUSD(r.MinVolume)))
	sb.WriteString(fmt.Sprintf("- Pairs: %d (%d inflow-dominant)\n\n", len(r.Pairs), r.InflowDominant()))

	if r.Central == "" {
		sb.WriteString("No pairs available.\n")
		return sb.String()
	}

	// Central totals
	s := r.Summary
	sb.WriteString("## Central Token\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Buys (inflow) | $%s (%.1f%%) |\n", formatUSD(s.InflowUSD), s.InflowPercent))
	sb.WriteString(fmt.Sprintf("| Sells (outflow) | $%s (%.1f%%) |\n", formatUSD(s.OutflowUSD), s.OutflowPercent))
	sb.WriteString(fmt.Sprintf("| Volume | $%s |\n", formatUSD(s.TotalVolumeUSD)))
	sb.WriteString(fmt.Sprintf("| Swaps | %d |\n", s.TotalSwaps))
	sb.WriteString(fmt.Sprintf("| Connections | %d |\n", s.Links))
	sb.WriteString("\n")

	// Pairs
	sb.WriteString("## Pairs\n\n")
	if len(r.Pairs) > 0 {
		sb.WriteString("| Token | Volume | Swaps | Inflow | Outflow | Inflow % | Dominant | Intensity | Color |\n")
		sb.WriteString("|-------|--------|-------|--------|---------|----------|----------|-----------|-------|\n")
		for _, p := range r.Pairs {
			sb.WriteString(fmt.Sprintf("| %s | $%s | %d | $%s | $%s | %.1f | %s | %.3f | `%s` |\n",
				p.Token, formatUSD(p.VolumeUSD), p.Swaps,
				formatUSD(p.InflowUSD), formatUSD(p.OutflowUSD),
				p.InflowShare*100, p.Dominant, p.Intensity, p.Color))
		}
	} else {
		sb.WriteString("No pairs survive the current filters.\n")
	}
	sb.WriteString("\n")

	// Layout
	if r.Layout != nil {
		sb.WriteString("## Layout\n\n")
		sb.WriteString(fmt.Sprintf("State %s after %d ticks (alpha %.4f).\n\n",
			r.Layout.State, r.Layout.Ticks, r.Layout.Alpha))
	}

	return sb.String()
}

// formatUSD renders v with thousands separators and two decimals.
func formatUSD(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var sb strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	out := sb.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
