package layout

import (
	"math"
	"math/rand"
)

// force contributes velocity changes for one tick.
type force interface {
	apply(alpha float64)
}

// jiggle returns a tiny random offset used to separate coincident points.
func jiggle(rng *rand.Rand) float64 {
	return (rng.Float64() - 0.5) * 1e-6
}

// linkForce pulls linked bodies toward distance. The correction is split by
// degree so that high-degree hubs move less.
type linkForce struct {
	links    []PositionedLink
	distance float64
	strength float64
	rng      *rand.Rand
}

func newLinkForce(bodies []*Body, links []PositionedLink, distance, strength float64, rng *rand.Rand) *linkForce {
	count := make([]int, len(bodies))
	for _, l := range links {
		count[l.Source.Index]++
		count[l.Target.Index]++
	}
	for i := range links {
		s, t := count[links[i].Source.Index], count[links[i].Target.Index]
		links[i].bias = float64(s) / float64(s+t)
	}
	return &linkForce{links: links, distance: distance, strength: strength, rng: rng}
}

func (f *linkForce) apply(alpha float64) {
	for _, l := range f.links {
		s, t := l.Source, l.Target
		x := t.X + t.VX - s.X - s.VX
		if x == 0 {
			x = jiggle(f.rng)
		}
		y := t.Y + t.VY - s.Y - s.VY
		if y == 0 {
			y = jiggle(f.rng)
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - f.distance) / d * alpha * f.strength
		x, y = x*k, y*k

		b := l.bias
		t.VX -= x * b
		t.VY -= y * b
		s.VX += x * (1 - b)
		s.VY += y * (1 - b)
	}
}

// manyBodyForce is pairwise repulsion (negative strength) evaluated exactly.
// Graphs here are star-shaped and capped at a few hundred nodes.
type manyBodyForce struct {
	bodies       []*Body
	strength     func() float64
	distanceMin2 float64
	rng          *rand.Rand
}

func (f *manyBodyForce) apply(alpha float64) {
	strength := f.strength()
	for i, a := range f.bodies {
		for j, b := range f.bodies {
			if i == j {
				continue
			}
			x := b.X - a.X
			y := b.Y - a.Y
			if x == 0 {
				x = jiggle(f.rng)
			}
			if y == 0 {
				y = jiggle(f.rng)
			}
			l := x*x + y*y
			if l < f.distanceMin2 {
				l = math.Sqrt(f.distanceMin2 * l)
			}
			w := strength * alpha / l
			a.VX += x * w
			a.VY += y * w
		}
	}
}

// centerForce translates all bodies so their mean sits at (x, y).
type centerForce struct {
	bodies   []*Body
	x, y     float64
	strength float64
}

func (f *centerForce) apply(float64) {
	if len(f.bodies) == 0 {
		return
	}
	var sx, sy float64
	for _, b := range f.bodies {
		sx += b.X
		sy += b.Y
	}
	n := float64(len(f.bodies))
	sx = (sx/n - f.x) * f.strength
	sy = (sy/n - f.y) * f.strength
	for _, b := range f.bodies {
		b.X -= sx
		b.Y -= sy
	}
}

// collideForce separates overlapping circles using the predicted positions.
// Larger bodies are pushed less.
type collideForce struct {
	bodies   []*Body
	strength float64
	rng      *rand.Rand
}

func (f *collideForce) apply(float64) {
	for i := 0; i < len(f.bodies); i++ {
		a := f.bodies[i]
		ri := a.CollisionRadius
		ri2 := ri * ri
		xi := a.X + a.VX
		yi := a.Y + a.VY
		for j := i + 1; j < len(f.bodies); j++ {
			b := f.bodies[j]
			rj := b.CollisionRadius
			r := ri + rj
			x := xi - b.X - b.VX
			y := yi - b.Y - b.VY
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = jiggle(f.rng)
				l += x * x
			}
			if y == 0 {
				y = jiggle(f.rng)
				l += y * y
			}
			d := math.Sqrt(l)
			k := (r - d) / d * f.strength
			x, y = x*k, y*k
			share := rj * rj / (ri2 + rj*rj)
			a.VX += x * share
			a.VY += y * share
			b.VX -= x * (1 - share)
			b.VY -= y * (1 - share)
		}
	}
}
