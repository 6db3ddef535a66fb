// Package combat holds the pure combat math: aim clamping and damage resolution.
package combat

import "github.com/OCAP2/arena/pkg/core"

// DefaultAimScale converts a range stat into arena units.
const DefaultAimScale = 15.0

// AimRadius is the reach of a weapon with the given range stat.
func AimRadius(rangeStat, scale float64) float64 {
	if rangeStat <= 0 {
		rangeStat = core.DefaultShootRange
	}
	if scale <= 0 {
		scale = DefaultAimScale
	}
	return rangeStat * scale
}

// ClampTarget returns the point on the segment origin->raw that lies at most
// AimRadius(rangeStat, scale) from origin. The reticle and the fire target both
// come from here so they always agree.
func ClampTarget(origin, raw core.Vec2, rangeStat, scale float64) core.Vec2 {
	radius := AimRadius(rangeStat, scale)
	delta := raw.Sub(origin)
	if delta.Len() <= radius {
		return raw
	}
	return origin.Add(delta.Normalize().Scale(radius))
}
