package reporting

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"token-flow-lab/internal/domain"
)

// WriteSummary prints a short coloured summary: inflow-dominant pairs in
// green, outflow-dominant pairs in red. top limits the pair rows, 0 prints all.
// Colour follows color.NoColor.
func WriteSummary(w io.Writer, r *Report, top int) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	bold.Fprintf(w, "%s", r.Central)
	fmt.Fprintf(w, "  window %s  mode %s  pairs %d\n", r.Window, r.Mode, len(r.Pairs))
	if r.Central == "" {
		faint.Fprintln(w, "no pairs")
		return
	}

	s := r.Summary
	green.Fprintf(w, "  buys  $%s (%.1f%%)\n", formatUSD(s.InflowUSD), s.InflowPercent)
	red.Fprintf(w, "  sells $%s (%.1f%%)\n", formatUSD(s.OutflowUSD), s.OutflowPercent)

	rows := r.Pairs
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	for _, p := range rows {
		c := red
		arrow := "<-"
		if p.Dominant == domain.DirectionInflow {
			c = green
			arrow = "->"
		}
		c.Fprintf(w, "  %-12s %s %14s  %5.1f%% in  swaps %d\n",
			p.Token, arrow, "$"+formatUSD(p.VolumeUSD), p.InflowShare*100, p.Swaps)
	}
	if len(rows) < len(r.Pairs) {
		faint.Fprintf(w, "  ... %d more\n", len(r.Pairs)-len(rows))
	}
	if r.Layout != nil {
		faint.Fprintf(w, "  layout %s after %d ticks\n", r.Layout.State, r.Layout.Ticks)
	}
}
