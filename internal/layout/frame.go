package layout

// Frame is an immutable copy of the simulation state after one tick.
type Frame struct {
	Generation uint64      `json:"generation"`
	Tick       int         `json:"tick"`
	State      State       `json:"state"`
	Alpha      float64     `json:"alpha"`
	Nodes      []FrameNode `json:"nodes"`
	Links      []FrameLink `json:"links"`
}

// FrameNode is a positioned node.
type FrameNode struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Fill   string  `json:"fill"`
	Pinned bool    `json:"pinned"`
}

// FrameLink is a link with resolved endpoint coordinates and the visual
// parameters from its encoded style, so a sink can draw it without a join.
type FrameLink struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	Speed       float64 `json:"speed"`
	Direction   int     `json:"direction"`
}

// Sink consumes frames. Frame is called from the runner goroutine and
// must not call back into the runner.
type Sink interface {
	Frame(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

// Frame calls f.
func (f SinkFunc) Frame(fr Frame) { f(fr) }

// Snapshot copies the current simulation state into a frame.
func (s *Simulation) Snapshot(generation uint64) Frame {
	f := Frame{
		Generation: generation,
		Tick:       s.ticks,
		State:      s.state,
		Alpha:      s.alpha,
		Nodes:      make([]FrameNode, 0, len(s.bodies)),
		Links:      make([]FrameLink, 0, len(s.links)),
	}
	for _, b := range s.bodies {
		f.Nodes = append(f.Nodes, FrameNode{
			ID:     b.ID,
			X:      b.X,
			Y:      b.Y,
			Radius: b.Radius,
			Fill:   b.Fill,
			Pinned: b.Pinned(),
		})
	}
	for _, l := range s.links {
		f.Links = append(f.Links, FrameLink{
			Source:      l.Source.ID,
			Target:      l.Target.ID,
			X1:          l.Source.X,
			Y1:          l.Source.Y,
			X2:          l.Target.X,
			Y2:          l.Target.Y,
			Color:       l.Style.Color,
			StrokeWidth: l.Style.StrokeWidth,
			Opacity:     l.Style.Opacity,
			Speed:       l.Style.Speed,
			Direction:   l.Style.Direction,
		})
	}
	return f
}
