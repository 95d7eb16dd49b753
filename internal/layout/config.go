package layout

import (
	"math"
	"time"
)

// Config holds the simulation and runner parameters.
type Config struct {
	Width  float64 // viewport width, the centre force targets Width/2
	Height float64 // viewport height

	LinkDistance float64
	LinkStrength float64

	ChargeStrength       float64 // steady-state many-body strength (negative repels)
	WarmupChargeStrength float64 // strength during the first WarmupTicks ticks
	WarmupTicks          int
	ChargeDistanceMin    float64

	CenterStrength  float64
	CollideStrength float64

	AlphaMin        float64
	AlphaDecay      float64 // 0 means 1 - AlphaMin^(1/300)
	VelocityDecay   float64
	ReheatAlpha     float64
	DragAlphaTarget float64
	MaxVelocity     float64 // per-tick clamp on |v|

	Seed int64

	TickInterval   time.Duration
	ReheatInterval time.Duration
}

// DefaultConfig returns the canonical parameters.
func DefaultConfig() Config {
	return Config{
		Width:                800,
		Height:               600,
		LinkDistance:         160,
		LinkStrength:         0.8,
		ChargeStrength:       -300,
		WarmupChargeStrength: -1000,
		WarmupTicks:          50,
		ChargeDistanceMin:    1,
		CenterStrength:       1,
		CollideStrength:      1,
		AlphaMin:             0.001,
		VelocityDecay:        0.4,
		ReheatAlpha:          0.03,
		DragAlphaTarget:      0.3,
		MaxVelocity:          100,
		Seed:                 1,
		TickInterval:         16 * time.Millisecond,
		ReheatInterval:       3 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.LinkDistance <= 0 {
		c.LinkDistance = d.LinkDistance
	}
	if c.LinkStrength <= 0 {
		c.LinkStrength = d.LinkStrength
	}
	if c.ChargeStrength == 0 {
		c.ChargeStrength = d.ChargeStrength
	}
	if c.WarmupChargeStrength == 0 {
		c.WarmupChargeStrength = d.WarmupChargeStrength
	}
	if c.WarmupTicks < 0 {
		c.WarmupTicks = 0
	}
	if c.ChargeDistanceMin <= 0 {
		c.ChargeDistanceMin = d.ChargeDistanceMin
	}
	if c.CenterStrength <= 0 {
		c.CenterStrength = d.CenterStrength
	}
	if c.CollideStrength <= 0 {
		c.CollideStrength = d.CollideStrength
	}
	if c.AlphaMin <= 0 || c.AlphaMin >= 1 {
		c.AlphaMin = d.AlphaMin
	}
	if c.AlphaDecay <= 0 || c.AlphaDecay >= 1 {
		c.AlphaDecay = 1 - math.Pow(c.AlphaMin, 1.0/300)
	}
	if c.VelocityDecay <= 0 || c.VelocityDecay >= 1 {
		c.VelocityDecay = d.VelocityDecay
	}
	if c.ReheatAlpha <= 0 {
		c.ReheatAlpha = d.ReheatAlpha
	}
	if c.DragAlphaTarget <= 0 {
		c.DragAlphaTarget = d.DragAlphaTarget
	}
	if c.MaxVelocity <= 0 {
		c.MaxVelocity = d.MaxVelocity
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.ReheatInterval <= 0 {
		c.ReheatInterval = d.ReheatInterval
	}
	return c
}
