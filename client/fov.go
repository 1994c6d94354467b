package client

import (
	"math"
	"math/rand"
	"sort"

	"roomcapture/geo"
)

// ProjectorConfig holds the field-of-view and screen placement tunables.
type ProjectorConfig struct {
	HorizontalFOV     float64 // degrees
	VerticalFOV       float64 // degrees
	MaxRenderDistance float64 // metres
	MinRenderDistance float64
	ScreenMargin      float64 // pixels
	VerticalSpread    float64 // fraction of screen height used for depth lift
	IconRadius        float64 // pixels, separation radius per icon
	SpiralAttempts    int
}

// DefaultProjectorConfig returns the tunables used on phones.
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		HorizontalFOV:     150,
		VerticalFOV:       130,
		MaxRenderDistance: 4.5,
		MinRenderDistance: 0.2,
		ScreenMargin:      30,
		VerticalSpread:    0.2,
		IconRadius:        36,
		SpiralAttempts:    48,
	}
}

// WorldObject is a candidate for projection.
type WorldObject struct {
	ID       string
	Position geo.Point
}

// ScreenPoint is a projected position in whole pixels.
type ScreenPoint struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Distance      float64 `json:"distance"`
	RelativeAngle float64 `json:"relativeAngle"`
}

// VisibleObject is a WorldObject placed on screen.
type VisibleObject struct {
	WorldObject
	Screen ScreenPoint
}

type slot struct {
	X, Y   float64
	Radius float64
	jitter float64
}

// Projector maps room positions into screen space for the current player
// pose. It is owned by a single render loop.
type Projector struct {
	cfg ProjectorConfig

	width, height    float64
	centerX, centerY float64

	player  geo.Point
	heading float64
	ready   bool

	occupied map[string]slot
	rng      *rand.Rand
}

// NewProjector creates a projector for a width x height pixel viewport. A
// nil rng gets a fixed seed.
func NewProjector(cfg ProjectorConfig, width, height float64, rng *rand.Rand) *Projector {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	p := &Projector{
		cfg:      cfg,
		occupied: make(map[string]slot),
		rng:      rng,
	}
	p.Resize(width, height)
	return p
}

// Configure replaces the tunables.
func (p *Projector) Configure(cfg ProjectorConfig) {
	p.cfg = cfg
}

func (p *Projector) Config() ProjectorConfig {
	return p.cfg
}

// Resize recomputes the viewport centre.
func (p *Projector) Resize(width, height float64) {
	p.width = width
	p.height = height
	p.centerX = width / 2
	p.centerY = height / 2
}

// Center returns the viewport centre in pixels.
func (p *Projector) Center() (float64, float64) {
	return p.centerX, p.centerY
}

// UpdatePlayer sets the pose and marks the projector ready.
func (p *Projector) UpdatePlayer(pos geo.Point, heading float64) {
	p.player = pos
	p.heading = geo.NormalizeHeading(heading)
	p.ready = true
}

// Follow applies a tracker snapshot. Snapshots from an inactive tracker
// make the projector not ready.
func (p *Projector) Follow(s Snapshot) {
	if !s.Ready() {
		p.ready = false
		return
	}
	p.UpdatePlayer(s.Position, s.Heading)
}

func (p *Projector) Ready() bool {
	return p.ready
}

// IsObjectInFOV reports whether pos is inside the render distance band and
// the horizontal field of view.
func (p *Projector) IsObjectInFOV(pos geo.Point) bool {
	if !p.ready {
		return false
	}
	d := geo.Distance(p.player, pos)
	if d < p.cfg.MinRenderDistance || d > p.cfg.MaxRenderDistance {
		return false
	}
	diff := geo.AngleDifference(p.heading, geo.Bearing(p.player, pos))
	return math.Abs(diff) <= p.cfg.HorizontalFOV/2
}

// WorldToScreen projects pos with fresh vertical jitter. ok is false when the
// object is out of view or lands off screen.
func (p *Projector) WorldToScreen(pos geo.Point) (ScreenPoint, bool) {
	return p.project(pos, p.rng.Float64())
}

func (p *Projector) project(pos geo.Point, jitter float64) (ScreenPoint, bool) {
	if !p.IsObjectInFOV(pos) {
		return ScreenPoint{}, false
	}
	d := geo.Distance(p.player, pos)
	rel := geo.AngleDifference(p.heading, geo.Bearing(p.player, pos))

	x := p.centerX + rel/(p.cfg.HorizontalFOV/2)*(p.centerX-p.cfg.ScreenMargin)
	y := p.centerY + p.verticalOffset(d, jitter)
	if !p.onScreen(x, y) {
		return ScreenPoint{}, false
	}
	return ScreenPoint{
		X:             math.Round(x),
		Y:             math.Round(y),
		Distance:      d,
		RelativeAngle: rel,
	}, true
}

// verticalOffset lifts nearer objects further above the horizon. jitter in
// [0,1) spreads the lift by a quarter of the span either way.
func (p *Projector) verticalOffset(d, jitter float64) float64 {
	norm := math.Min(d/p.cfg.MaxRenderDistance, 1)
	span := (1 - norm) * p.height * p.cfg.VerticalSpread
	return -span*0.5 + (jitter-0.5)*span*0.5
}

func (p *Projector) onScreen(x, y float64) bool {
	m := p.cfg.ScreenMargin
	return x >= m && x <= p.width-m && y >= m && y <= p.height-m
}

// VisibleObjects projects every object in view, nearest first, moving icons
// that would overlap an already placed one. Slots of objects no longer in
// view are dropped.
func (p *Projector) VisibleObjects(objects []WorldObject) []VisibleObject {
	if !p.ready {
		p.occupied = make(map[string]slot)
		return nil
	}

	type candidate struct {
		obj  WorldObject
		dist float64
	}
	candidates := make([]candidate, 0, len(objects))
	for _, o := range objects {
		if !o.Position.Valid() || !p.IsObjectInFOV(o.Position) {
			continue
		}
		candidates = append(candidates, candidate{o, geo.Distance(p.player, o.Position)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].obj.ID < candidates[j].obj.ID
	})

	placed := make(map[string]bool, len(candidates))
	result := make([]VisibleObject, 0, len(candidates))
	for _, c := range candidates {
		jitter := p.rng.Float64()
		if s, ok := p.occupied[c.obj.ID]; ok {
			jitter = s.jitter
		}
		sp, ok := p.project(c.obj.Position, jitter)
		if !ok {
			continue
		}
		sp.X, sp.Y = p.place(c.obj.ID, sp.X, sp.Y, placed)
		p.occupied[c.obj.ID] = slot{X: sp.X, Y: sp.Y, Radius: p.cfg.IconRadius, jitter: jitter}
		placed[c.obj.ID] = true
		result = append(result, VisibleObject{WorldObject: c.obj, Screen: sp})
	}

	for id := range p.occupied {
		if !placed[id] {
			delete(p.occupied, id)
		}
	}
	return result
}

// place returns a free position near (x, y) for id.
func (p *Projector) place(id string, x, y float64, placed map[string]bool) (float64, float64) {
	if p.free(id, x, y, placed) {
		return x, y
	}

	step := p.cfg.IconRadius
	if step <= 0 {
		step = 1
	}
	ring, inRing, perRing := 1, 0, 6
	for attempt := 0; attempt < p.cfg.SpiralAttempts; attempt++ {
		a := 2 * math.Pi * float64(inRing) / float64(perRing)
		r := step * float64(ring)
		cx := math.Round(x + r*math.Cos(a))
		cy := math.Round(y + r*math.Sin(a))
		if p.onScreen(cx, cy) && p.free(id, cx, cy, placed) {
			return cx, cy
		}
		inRing++
		if inRing == perRing {
			ring++
			inRing = 0
			perRing = 6 * ring
		}
	}

	// nothing free nearby; scatter and keep it on screen
	m := p.cfg.ScreenMargin
	spread := step * 2
	cx := geo.Clamp(x+(p.rng.Float64()*2-1)*spread, m, p.width-m)
	cy := geo.Clamp(y+(p.rng.Float64()*2-1)*spread, m, p.height-m)
	return math.Round(cx), math.Round(cy)
}

func (p *Projector) free(id string, x, y float64, placed map[string]bool) bool {
	for other, s := range p.occupied {
		if other == id || !placed[other] {
			continue
		}
		if math.Hypot(x-s.X, y-s.Y) < s.Radius+p.cfg.IconRadius {
			return false
		}
	}
	return true
}

// Occupied returns the number of icon slots currently held.
func (p *Projector) Occupied() int {
	return len(p.occupied)
}
