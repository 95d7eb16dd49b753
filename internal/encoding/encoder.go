// Package encoding maps flow ratios and volumes onto rendering parameters:
// link colour, stroke width, opacity, particle speed and node radius.
package encoding

import (
	"hash/fnv"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/flow"
	"token-flow-lab/internal/graph"
	"token-flow-lab/internal/imagecache"
)

// Params holds the encoder constants.
type Params struct {
	Flow flow.Params

	MinChannel float64 // colour channel at intensity 0
	MaxChannel float64 // colour channel at intensity 1

	MinStroke float64
	MaxStroke float64

	DominantOpacity float64
	FaintOpacity    float64

	BaseSpeed       float64
	IntensitySpeed  float64
	VolumeThreshold float64 // USD per 24h, divided by the window time scale
	MaxVolumeFactor float64
	VolumeSpeed     float64

	MinRadius        float64
	MaxRadius        float64
	CollisionPadding float64

	CentralFill  string
	NeutralColor string
}

// DefaultParams returns the canonical constants.
func DefaultParams() Params {
	return Params{
		Flow:             flow.DefaultParams(),
		MinChannel:       50,
		MaxChannel:       255,
		MinStroke:        2,
		MaxStroke:        6,
		DominantOpacity:  0.8,
		FaintOpacity:     0.3,
		BaseSpeed:        3,
		IntensitySpeed:   40,
		VolumeThreshold:  100000,
		MaxVolumeFactor:  15,
		VolumeSpeed:      3,
		MinRadius:        8,
		MaxRadius:        24,
		CollisionPadding: 8,
		CentralFill:      "#3b82f6",
		NeutralColor:     "#808080",
	}
}

// LinkStyle is the rendering model of one logical link.
type LinkStyle struct {
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	Ratio       flow.Ratio `json:"ratio"`
	Color       string     `json:"color"`
	StrokeWidth float64    `json:"strokeWidth"`
	Opacity     float64    `json:"opacity"`
	Speed       float64    `json:"speed"`
	Direction   int        `json:"direction"` // +1 towards the central node, -1 away
}

// NodeStyle is the rendering model of one node.
type NodeStyle struct {
	ID              string  `json:"id"`
	IsCentral       bool    `json:"isCentral"`
	Volume          float64 `json:"volume"` // the volume driving the radius
	Radius          float64 `json:"radius"`
	CollisionRadius float64 `json:"collisionRadius"`
	Fill            string  `json:"fill"`
	ImageURL        string  `json:"imageUrl,omitempty"`
}

// Encoded is a fully styled graph.
type Encoded struct {
	Central string      `json:"central"`
	Nodes   []NodeStyle `json:"nodes"`
	Links   []LinkStyle `json:"links"`
}

// Encoder derives styles. Images may be nil.
type Encoder struct {
	Params Params
	Images imagecache.Cache
}

// New creates an encoder with default params.
func New(images imagecache.Cache) *Encoder {
	return &Encoder{Params: DefaultParams(), Images: images}
}

// Encode styles every node and link of g.
func (e *Encoder) Encode(g graph.Graph, window domain.TimeWindow, legend domain.Direction) Encoded {
	out := Encoded{
		Central: g.Central,
		Nodes:   e.Nodes(g),
		Links:   make([]LinkStyle, 0, len(g.Links)),
	}
	scale := window.TimeScale()
	for _, l := range g.Links {
		out.Links = append(out.Links, e.Link(l, scale, legend))
	}
	return out
}

// Link styles one link. legend selects which dominant direction is highlighted.
func (e *Encoder) Link(l graph.Link, timeScale float64, legend domain.Direction) LinkStyle {
	p := e.Params
	r := l.Ratio(p.Flow, timeScale)

	s := LinkStyle{
		Source:      l.Source,
		Target:      l.Target,
		Ratio:       r,
		Color:       e.linkColor(l, r),
		StrokeWidth: lerp(p.MinStroke, p.MaxStroke, r.Intensity),
		Opacity:     p.FaintOpacity,
		Speed:       e.speed(l, r, timeScale),
		Direction:   -1,
	}
	if r.Dominant == highlighted(legend) {
		s.Opacity = p.DominantOpacity
	}
	if r.InflowShare > 0.5 {
		s.Direction = 1
	}
	return s
}

func highlighted(legend domain.Direction) domain.Direction {
	if legend == domain.DirectionOutflow {
		return domain.DirectionOutflow
	}
	return domain.DirectionInflow
}

func (e *Encoder) linkColor(l graph.Link, r flow.Ratio) string {
	if !(l.CentralTotal() > 0) {
		return e.Params.NeutralColor
	}
	ch := math.Round(lerp(e.Params.MinChannel, e.Params.MaxChannel, r.Intensity)) / 255
	c := colorful.Color{R: ch}
	if r.Dominant == domain.DirectionInflow {
		c = colorful.Color{G: ch}
	}
	return c.Clamped().Hex()
}

func (e *Encoder) speed(l graph.Link, r flow.Ratio, timeScale float64) float64 {
	p := e.Params
	if timeScale < 1 || math.IsNaN(timeScale) {
		timeScale = 1
	}
	threshold := p.VolumeThreshold / timeScale
	volumeFactor := p.MaxVolumeFactor
	if threshold > 0 {
		volumeFactor = math.Min(l.CentralTotal()/threshold, p.MaxVolumeFactor)
	}
	return math.Max(p.BaseSpeed, r.Intensity*p.IntensitySpeed+volumeFactor*p.VolumeSpeed)
}

// Nodes styles every node of g. Non-central nodes are sized by their link
// to the central token; a node without such a link gets the minimum radius.
func (e *Encoder) Nodes(g graph.Graph) []NodeStyle {
	scale := NewRadiusScale(g.MaxNodeVolume(), e.Params.MinRadius, e.Params.MaxRadius)

	out := make([]NodeStyle, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		vol := n.TotalVolumeUSD
		if !n.IsCentral {
			vol = 0
			if l, ok := g.LinkBetween(n.ID, g.Central); ok {
				vol = l.TotalVolumeUSD
			}
		}

		r := scale.Radius(vol)
		s := NodeStyle{
			ID:              n.ID,
			IsCentral:       n.IsCentral,
			Volume:          vol,
			Radius:          r,
			CollisionRadius: r + e.Params.CollisionPadding,
			Fill:            e.Params.CentralFill,
		}
		if !n.IsCentral {
			s.Fill = PaletteColor(n.ID)
		}
		if e.Images != nil {
			if url, ok := e.Images.Get(n.ID); ok {
				s.ImageURL = url
			}
		}
		out = append(out, s)
	}
	return out
}

// PaletteColor returns a stable fill colour for a token symbol.
func PaletteColor(symbol string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	hue := float64(h.Sum32()%360)
	return colorful.Hsv(hue, 0.55, 0.85).Hex()
}

func lerp(lo, hi, t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return lo + (hi-lo)*t
}
