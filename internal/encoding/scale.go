package encoding

import "math"

// RadiusScale is a square-root scale from [0, max] volume onto [min, max] radius,
// so circle area grows linearly with volume.
type RadiusScale struct {
	domainMax float64
	minR      float64
	maxR      float64
}

// NewRadiusScale creates a scale. A non-positive domain maximum is treated as 1.
func NewRadiusScale(maxVolume, minR, maxR float64) RadiusScale {
	if !(maxVolume > 0) || math.IsInf(maxVolume, 0) {
		maxVolume = 1
	}
	return RadiusScale{domainMax: maxVolume, minR: minR, maxR: maxR}
}

// Radius maps volume to a radius, clamped to the range.
func (s RadiusScale) Radius(volume float64) float64 {
	if !(volume > 0) {
		return s.minR
	}
	t := math.Sqrt(volume) / math.Sqrt(s.domainMax)
	if t > 1 {
		t = 1
	}
	return s.minR + (s.maxR-s.minR)*t
}
