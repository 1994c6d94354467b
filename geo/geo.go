// Package geo holds the room geometry shared by the server and the client
// tracker: distances, compass bearings and heading arithmetic in degrees.
//
// Room coordinates are metres with the origin in the north-west corner and
// y growing southward. Heading 0 faces north (-y) and 90 faces east (+x).
package geo

import "math"

// Point is a position in room coordinates.
type Point struct {
	X float64 `json:"x" msgpack:"x" yaml:"x"`
	Y float64 `json:"y" msgpack:"y" yaml:"y"`
}

// Valid reports whether both coordinates are finite numbers.
func (p Point) Valid() bool {
	return Finite(p.X) && Finite(p.Y)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Distance returns the euclidean distance between a and b
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// NormalizeHeading wraps h into [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// AngleDifference returns the signed shortest rotation from a to b in
// degrees, in [-180, 180]. AngleDifference(a, b) == -AngleDifference(b, a).
func AngleDifference(a, b float64) float64 {
	diff := NormalizeHeading(b) - NormalizeHeading(a)
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	return diff
}

// Bearing returns the compass bearing from one point to another in [0, 360).
func Bearing(from, to Point) float64 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	return NormalizeHeading(math.Atan2(dx, -dy) * 180 / math.Pi)
}

// Advance moves p by dist metres along compass heading h (degrees).
func Advance(p Point, h, dist float64) Point {
	rad := h * math.Pi / 180
	return Point{
		X: p.X + dist*math.Sin(rad),
		Y: p.Y - dist*math.Cos(rad),
	}
}

// SmoothHeading blends next into prev with weight alpha on prev, taking the
// shorter way around the circle. The result is in [0, 360).
func SmoothHeading(prev, next, alpha float64) float64 {
	prev = NormalizeHeading(prev)
	next = NormalizeHeading(next)
	if next-prev > 180 {
		next -= 360
	} else if prev-next > 180 {
		next += 360
	}
	return NormalizeHeading(prev*alpha + next*(1-alpha))
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampPosition keeps p inside a width x height room, at least margin from
// every wall. A margin larger than half a dimension pins that axis to the
// centre.
func ClampPosition(p Point, width, height, margin float64) Point {
	return Point{
		X: clampAxis(p.X, width, margin),
		Y: clampAxis(p.Y, height, margin),
	}
}

func clampAxis(v, dim, margin float64) float64 {
	if margin*2 > dim {
		return dim / 2
	}
	return Clamp(v, margin, dim-margin)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
