// Package flow converts a pair's central-perspective inflow/outflow into a
// normalized ratio, dominant direction and visual intensity.
package flow

import (
	"math"

	"token-flow-lab/internal/domain"
)

// Params holds the tunable constants of the ratio math.
type Params struct {
	// SaturationRatio is the max/min ratio treated as "fully one-directional".
	// Also used when the minority side is zero.
	SaturationRatio float64
	// Exponent of the amplification curve, in (0, 1].
	Exponent float64
}

// DefaultParams returns the canonical constants.
func DefaultParams() Params {
	return Params{
		SaturationRatio: 5,
		Exponent:        0.5,
	}
}

// Ratio is the derived flow summary of one link.
type Ratio struct {
	InflowShare float64          // central inflow / (inflow + outflow), 0.5 when both are zero
	Dominant    domain.Direction // inflow iff InflowShare > 0.5
	Magnitude   float64          // max/min, SaturationRatio when min is zero, 1 when both are zero
	Intensity   float64          // [0,1]
}

// OutflowShare returns 1 - InflowShare.
func (r Ratio) OutflowShare() float64 {
	return 1 - r.InflowShare
}

// Neutral is the ratio of a link with no observed flow.
var Neutral = Ratio{
	InflowShare: 0.5,
	Dominant:    domain.DirectionOutflow,
	Magnitude:   1,
	Intensity:   0,
}

// Compute returns the ratio using DefaultParams.
func Compute(inflow, outflow, timeScale float64) Ratio {
	return DefaultParams().Compute(inflow, outflow, timeScale)
}

// Compute derives the Ratio for the given central-perspective flows.
// timeScale is the window normalization factor (1 for 24h, larger for shorter windows).
func (p Params) Compute(inflow, outflow, timeScale float64) Ratio {
	inflow = sanitize(inflow)
	outflow = sanitize(outflow)

	total := inflow + outflow
	if total <= 0 {
		return Neutral
	}

	r := Ratio{InflowShare: inflow / total}
	if r.InflowShare > 0.5 {
		r.Dominant = domain.DirectionInflow
	} else {
		r.Dominant = domain.DirectionOutflow
	}

	sat := p.saturation()
	hi, lo := math.Max(inflow, outflow), math.Min(inflow, outflow)
	if lo > 0 {
		r.Magnitude = hi / lo
	} else {
		r.Magnitude = sat
	}

	if math.IsNaN(timeScale) || timeScale < 1 {
		timeScale = 1
	}
	r.Intensity = math.Min(1, p.amplify(math.Abs(r.Magnitude-1))*timeScale)
	return r
}

// amplify maps the distance from neutral onto [0,1] with a sub-linear curve
// that saturates at SaturationRatio-1.
func (p Params) amplify(d float64) float64 {
	span := p.saturation() - 1
	if d <= 0 || span <= 0 {
		return 0
	}
	exp := p.Exponent
	if exp <= 0 || exp > 1 || math.IsNaN(exp) {
		exp = DefaultParams().Exponent
	}
	return math.Pow(math.Min(d, span)/span, exp)
}

func (p Params) saturation() float64 {
	if p.SaturationRatio <= 1 || math.IsNaN(p.SaturationRatio) || math.IsInf(p.SaturationRatio, 0) {
		return DefaultParams().SaturationRatio
	}
	return p.SaturationRatio
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
