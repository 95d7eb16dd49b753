package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the pair rows as CSV.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("central,token,volume_usd,swaps,inflow_usd,outflow_usd,inflow_share,dominant,intensity,color,stroke_width,radius,x,y\n")

	for _, p := range r.Pairs {
		x, y := "", ""
		if p.Positioned {
			x = fmt.Sprintf("%.2f", p.X)
			y = fmt.Sprintf("%.2f", p.Y)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%.2f,%d,%.2f,%.2f,%.6f,%s,%.6f,%s,%.3f,%.3f,%s,%s\n",
			csvField(r.Central),
			csvField(p.Token),
			p.VolumeUSD,
			p.Swaps,
			p.InflowUSD,
			p.OutflowUSD,
			p.InflowShare,
			p.Dominant,
			p.Intensity,
			p.Color,
			p.StrokeWidth,
			p.Radius,
			x,
			y,
		))
	}

	return sb.String()
}

// csvField quotes s when it contains a separator, quote or newline.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
