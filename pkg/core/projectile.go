// pkg/core/projectile.go
package core

import "time"

// Projectile is a shot in flight. Authoritative projectiles belong to the local
// shooter and resolve collisions; cosmetic ones only travel.
type Projectile struct {
	ID            uint64
	ShooterID     string
	Origin        Vec2
	Position      Vec2
	Target        Vec2
	Velocity      Vec2
	Damage        int
	Distance      float64
	Traveled      float64
	CreatedAt     time.Time
	Authoritative bool
}

// Remaining is the distance left between the projectile and its target.
func (p *Projectile) Remaining() float64 {
	return p.Position.Dist(p.Target)
}
