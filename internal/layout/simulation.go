// Package layout assigns 2D positions to an encoded graph with a
// force-directed simulation (link, many-body, centre and collision forces)
// and streams the positions as frames.
package layout

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"token-flow-lab/internal/encoding"
)

// State is the lifecycle state of a simulation.
type State string

const (
	StateIdle       State = "idle"
	StateSimulating State = "simulating"
	StateDragging   State = "dragging"
	StateSettled    State = "settled"
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

const (
	initialRadius = 10.0
	initialAngle  = math.Pi * 0.7639320225002102 // pi * (3 - sqrt(5))
)

// Simulation is a synchronous force simulation over one graph snapshot.
// It is not safe for concurrent use; Runner serializes access.
type Simulation struct {
	cfg    Config
	bodies []*Body
	byID   map[string]*Body
	links  []PositionedLink
	forces []force
	rng    *rand.Rand

	alpha       float64
	alphaTarget float64
	ticks       int
	state       State
	dragging    map[string]struct{}
	recovered   int
	skipped     int
}

// NewSimulation builds bodies from the encoded nodes and resolves link endpoints.
// Links whose endpoints are not among the nodes are ignored.
func NewSimulation(enc encoding.Encoded, cfg Config) *Simulation {
	cfg = cfg.withDefaults()
	s := &Simulation{
		cfg:      cfg,
		byID:     make(map[string]*Body, len(enc.Nodes)),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		alpha:    1,
		state:    StateIdle,
		dragging: make(map[string]struct{}),
	}

	cx, cy := cfg.Width/2, cfg.Height/2
	for _, n := range enc.Nodes {
		if _, dup := s.byID[n.ID]; dup {
			s.skipped++
			continue
		}
		idx := len(s.bodies)
		radius := initialRadius * math.Sqrt(0.5+float64(idx))
		angle := float64(idx) * initialAngle
		b := &Body{
			ID:              n.ID,
			Fill:            n.Fill,
			Index:           idx,
			X:               cx + radius*math.Cos(angle),
			Y:               cy + radius*math.Sin(angle),
			Radius:          n.Radius,
			CollisionRadius: n.CollisionRadius,
		}
		if b.CollisionRadius <= 0 {
			b.CollisionRadius = b.Radius
		}
		s.bodies = append(s.bodies, b)
		s.byID[n.ID] = b
	}

	for _, l := range enc.Links {
		src, okS := s.byID[l.Source]
		dst, okT := s.byID[l.Target]
		if !okS || !okT || src == dst {
			s.skipped++
			continue
		}
		s.links = append(s.links, PositionedLink{Source: src, Target: dst, Style: l})
	}

	s.forces = []force{
		newLinkForce(s.bodies, s.links, cfg.LinkDistance, cfg.LinkStrength, s.rng),
		&manyBodyForce{
			bodies:       s.bodies,
			strength:     s.chargeStrength,
			distanceMin2: cfg.ChargeDistanceMin * cfg.ChargeDistanceMin,
			rng:          s.rng,
		},
		&centerForce{bodies: s.bodies, x: cx, y: cy, strength: cfg.CenterStrength},
		&collideForce{bodies: s.bodies, strength: cfg.CollideStrength, rng: s.rng},
	}
	return s
}

func (s *Simulation) chargeStrength() float64 {
	if s.ticks < s.cfg.WarmupTicks {
		return s.cfg.WarmupChargeStrength
	}
	return s.cfg.ChargeStrength
}

// Tick advances the simulation by one step. It returns false without doing
// anything once the simulation has settled.
func (s *Simulation) Tick() bool {
	if s.state == StateSettled {
		return false
	}
	if s.state == StateIdle {
		s.state = StateSimulating
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay
	for _, f := range s.forces {
		f.apply(s.alpha)
	}

	keep := 1 - s.cfg.VelocityDecay
	for _, b := range s.bodies {
		if b.Pinned() {
			b.X, b.Y = *b.FX, *b.FY
			b.VX, b.VY = 0, 0
			continue
		}
		b.VX *= keep
		b.VY *= keep
		s.clampVelocity(b)
		b.X += b.VX
		b.Y += b.VY
	}
	s.recover()
	s.ticks++

	if s.alpha < s.cfg.AlphaMin && len(s.dragging) == 0 {
		s.state = StateSettled
	}
	return true
}

func (s *Simulation) clampVelocity(b *Body) {
	v := math.Hypot(b.VX, b.VY)
	if v > s.cfg.MaxVelocity {
		k := s.cfg.MaxVelocity / v
		b.VX *= k
		b.VY *= k
	}
}

// recover resets bodies whose state became non-finite back near the centre.
func (s *Simulation) recover() {
	cx, cy := s.cfg.Width/2, s.cfg.Height/2
	for _, b := range s.bodies {
		if finite(b.X) && finite(b.Y) && finite(b.VX) && finite(b.VY) {
			continue
		}
		b.X = cx + (s.rng.Float64()-0.5)*initialRadius
		b.Y = cy + (s.rng.Float64()-0.5)*initialRadius
		b.VX, b.VY = 0, 0
		s.recovered++
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Reheat raises alpha to at least the reheat level and resumes a settled simulation.
func (s *Simulation) Reheat() {
	if s.alpha < s.cfg.ReheatAlpha {
		s.alpha = s.cfg.ReheatAlpha
	}
	s.wake()
}

func (s *Simulation) wake() {
	if len(s.dragging) > 0 {
		s.state = StateDragging
	} else {
		s.state = StateSimulating
	}
}

// DragStart pins id at its current position and raises the target energy.
func (s *Simulation) DragStart(id string) error {
	b, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("drag start %q: %w", id, ErrUnknownNode)
	}
	if _, busy := s.dragging[id]; busy {
		return fmt.Errorf("drag start %q: %w", id, ErrAlreadyDragging)
	}
	s.dragging[id] = struct{}{}
	b.pin(b.X, b.Y)
	s.alphaTarget = s.cfg.DragAlphaTarget
	s.wake()
	return nil
}

// DragMove moves the pin of a dragged node.
func (s *Simulation) DragMove(id string, x, y float64) error {
	b, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("drag move %q: %w", id, ErrUnknownNode)
	}
	if _, busy := s.dragging[id]; !busy {
		return fmt.Errorf("drag move %q: %w", id, ErrNotDragging)
	}
	if !finite(x) || !finite(y) {
		return fmt.Errorf("drag move %q: %w", id, ErrInvalidPosition)
	}
	b.pin(x, y)
	return nil
}

// DragEnd releases the pin. The target energy drops back to zero once no drag remains.
func (s *Simulation) DragEnd(id string) error {
	b, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("drag end %q: %w", id, ErrUnknownNode)
	}
	if _, busy := s.dragging[id]; !busy {
		return fmt.Errorf("drag end %q: %w", id, ErrNotDragging)
	}
	delete(s.dragging, id)
	b.unpin()
	if len(s.dragging) == 0 {
		s.alphaTarget = 0
	}
	s.wake()
	return nil
}

// Dragging returns the ids of nodes with an active drag, sorted.
func (s *Simulation) Dragging() []string {
	ids := make([]string, 0, len(s.dragging))
	for id := range s.dragging {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State returns the current lifecycle state.
func (s *Simulation) State() State { return s.state }

// Alpha returns the current energy.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Ticks returns the number of completed ticks.
func (s *Simulation) Ticks() int { return s.ticks }

// Recovered returns how many body resets were needed to recover from non-finite values.
func (s *Simulation) Recovered() int { return s.recovered }

// Bodies returns the simulated bodies in input order.
func (s *Simulation) Bodies() []*Body { return s.bodies }

// Skipped returns how many duplicate nodes or dangling links were ignored.
func (s *Simulation) Skipped() int { return s.skipped }

// Links returns the positioned links.
func (s *Simulation) Links() []PositionedLink { return s.links }

// Body returns the body with the given id.
func (s *Simulation) Body(id string) (*Body, bool) {
	b, ok := s.byID[id]
	return b, ok
}

// Run ticks until the simulation settles or maxTicks is reached and returns the tick count.
func (s *Simulation) Run(maxTicks int) int {
	n := 0
	for n < maxTicks && s.Tick() {
		n++
	}
	return n
}
