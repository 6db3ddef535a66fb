// pkg/core/types.go
package core

import "math"

// Vec2 is a point or vector in arena units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector of v, or the zero vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l < 1e-9 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Lerp interpolates from v to o by t in [0,1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Facing is one of the four cardinal directions an entity can face.
type Facing string

const (
	FacingUp    Facing = "up"
	FacingDown  Facing = "down"
	FacingLeft  Facing = "left"
	FacingRight Facing = "right"

	DefaultFacing = FacingDown
)

// Valid reports whether f is one of the four cardinal values.
func (f Facing) Valid() bool {
	switch f {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return true
	}
	return false
}

// FacingFromVector picks the dominant axis of v. Horizontal wins ties.
// The zero vector returns fallback.
func FacingFromVector(v Vec2, fallback Facing) Facing {
	ax, ay := math.Abs(v.X), math.Abs(v.Y)
	switch {
	case ax == 0 && ay == 0:
		return fallback
	case ax >= ay && v.X > 0:
		return FacingRight
	case ax >= ay:
		return FacingLeft
	case v.Y > 0:
		return FacingDown
	default:
		return FacingUp
	}
}

// Default stat values used when the identity collaborator leaves a stat unset.
const (
	DefaultSpeed          = 100.0
	DefaultShootRange     = 10.0
	DefaultShotsPerMinute = 60.0
	DefaultHitPower       = 10
)

// Stats is the opaque stat block supplied by the identity collaborator.
type Stats struct {
	Speed          float64 `json:"speed"`
	ShootRange     float64 `json:"shootRange"`
	ShotsPerMinute float64 `json:"shotsPerMinute"`
	HitPower       int     `json:"hitPower"`
}

// WithDefaults returns a copy with every absent (<= 0) stat replaced by its default.
func (s Stats) WithDefaults() Stats {
	if s.Speed <= 0 {
		s.Speed = DefaultSpeed
	}
	if s.ShootRange <= 0 {
		s.ShootRange = DefaultShootRange
	}
	if s.ShotsPerMinute <= 0 {
		s.ShotsPerMinute = DefaultShotsPerMinute
	}
	if s.HitPower <= 0 {
		s.HitPower = DefaultHitPower
	}
	return s
}
