package layout

import "token-flow-lab/internal/encoding"

// Body is a simulated node. Positions live here, never on the logical graph node.
type Body struct {
	ID              string
	Index           int
	X, Y            float64
	VX, VY          float64
	FX, FY          *float64 // fixed position while pinned
	Radius          float64
	CollisionRadius float64
	Fill            string
}

// Pinned reports whether the body has a fixed position.
func (b *Body) Pinned() bool {
	return b.FX != nil && b.FY != nil
}

func (b *Body) pin(x, y float64) {
	b.FX, b.FY = &x, &y
}

func (b *Body) unpin() {
	b.FX, b.FY = nil, nil
}

// PositionedLink is a link whose endpoints are resolved to bodies.
// Produced only by the layout engine.
type PositionedLink struct {
	Source *Body
	Target *Body
	Style  encoding.LinkStyle // visual parameters, carried into frames
	bias   float64 // share of the correction applied to Target
}
