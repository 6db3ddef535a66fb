package main

import (
	"math/rand/v2"
	"time"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/internal/combat"
	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/movement"
	"github.com/OCAP2/arena/internal/session"
	"github.com/OCAP2/arena/pkg/core"
)

// waypointReach is how close the bot has to get before it heads for the next
// point of its route.
const waypointReach = 40.0

// bot drives a session without a presentation layer. It walks its route (or
// wanders inside the bounds when it has none) and shoots at the nearest live
// opponent in reach.
type bot struct {
	arena    *arena.Arena
	route    []core.Vec2
	next     int
	bounds   config.BoundsConfig
	aimScale float64
	rng      *rand.Rand
	greeting string
	greeted  bool
}

func newBot(a *arena.Arena, route []core.Vec2, sim config.SimConfig, greeting string) *bot {
	seed := sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &bot{
		arena:    a,
		route:    route,
		bounds:   sim.Bounds,
		aimScale: sim.AimScale,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		greeting: greeting,
	}
}

// Input is a session.InputFunc.
func (b *bot) Input(time.Time) session.Input {
	var in session.Input
	if b.greeting != "" && !b.greeted {
		in.Chat = b.greeting
		b.greeted = true
	}

	local, ok := b.arena.Local()
	if !ok || local.Eliminated {
		return in
	}

	in.Move = steer(local.Position, b.waypoint(local.Position))

	if target, ok := b.nearest(local); ok {
		// the reticle follows the target while closing in
		in.Aim = target.Position
		reach := combat.AimRadius(local.Stats.WithDefaults().ShootRange, b.aimScale)
		in.Fire = local.Position.Dist(target.Position) <= reach
	}
	return in
}

// waypoint returns where the bot is heading, advancing past reached points.
func (b *bot) waypoint(pos core.Vec2) core.Vec2 {
	if len(b.route) == 0 {
		b.route = []core.Vec2{b.wander()}
		b.next = 0
	}
	wp := b.route[b.next]
	if pos.Dist(wp) > waypointReach {
		return wp
	}
	if len(b.route) == 1 {
		// a single-point route is a wander target
		b.route[0] = b.wander()
	} else {
		b.next = (b.next + 1) % len(b.route)
	}
	return b.route[b.next]
}

func (b *bot) wander() core.Vec2 {
	w, h := b.bounds.MaxX-b.bounds.MinX, b.bounds.MaxY-b.bounds.MinY
	if w <= 0 || h <= 0 {
		w, h = 1600, 1200
	}
	return core.Vec2{
		X: b.bounds.MinX + b.rng.Float64()*w,
		Y: b.bounds.MinY + b.rng.Float64()*h,
	}
}

// nearest picks the closest opponent that can still be hit.
func (b *bot) nearest(local *core.PlayerState) (*core.PlayerState, bool) {
	var best *core.PlayerState
	bestDist := 0.0
	for _, p := range b.arena.Players() {
		if p.ID == local.ID || p.Eliminated {
			continue
		}
		d := local.Position.Dist(p.Position)
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, best != nil
}

// steer presses the keys that move pos towards target. Down is +Y.
func steer(pos, target core.Vec2) movement.Input {
	const deadzone = waypointReach / 2
	d := target.Sub(pos)
	return movement.Input{
		Left:  d.X < -deadzone,
		Right: d.X > deadzone,
		Up:    d.Y < -deadzone,
		Down:  d.Y > deadzone,
	}
}
