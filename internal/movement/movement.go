// Package movement turns directional input into the local player's smoothed
// motion and throttled position reports.
package movement

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/pkg/core"
)

// Input is the directional state sampled for one tick.
type Input struct {
	Up, Down, Left, Right bool
}

// Vector returns the raw unit-per-axis direction of the input.
func (in Input) Vector() core.Vec2 {
	var v core.Vec2
	if in.Up {
		v.Y--
	}
	if in.Down {
		v.Y++
	}
	if in.Left {
		v.X--
	}
	if in.Right {
		v.X++
	}
	return v
}

// Bounds is supplied by the map and keeps positions inside the playable area.
type Bounds interface {
	Clamp(core.Vec2) core.Vec2
}

// Rect is a rectangular Bounds.
type Rect struct {
	Min, Max core.Vec2
}

func (r Rect) Clamp(v core.Vec2) core.Vec2 {
	return core.Vec2{
		X: math.Min(math.Max(v.X, r.Min.X), r.Max.X),
		Y: math.Min(math.Max(v.Y, r.Min.Y), r.Max.Y),
	}
}

// Config tunes the controller.
type Config struct {
	Acceleration   float64       // units/s² toward a non-zero target velocity
	Deceleration   float64       // units/s² toward rest
	ReportInterval time.Duration // minimum gap between position reports
	MaxStep        time.Duration // longest tick applied at once
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Acceleration:   1000,
		Deceleration:   1500,
		ReportInterval: 50 * time.Millisecond,
		MaxStep:        250 * time.Millisecond,
	}
}

// Update is the result of one controller step.
type Update struct {
	Position         core.Vec2
	Velocity         core.Vec2
	Facing           core.Facing
	Moving           bool
	DirectionChanged bool // facing or moving flag changed this tick
	Report           bool // a position report is due
}

// Controller drives the local player. It is owned by the session tick loop.
type Controller struct {
	cfg      Config
	bounds   Bounds
	velocity core.Vec2
	last     time.Time
	throttle *rate.Limiter
}

// NewController creates a controller. bounds may be nil for an open arena.
func NewController(cfg Config, bounds Bounds) *Controller {
	c := &Controller{cfg: cfg, bounds: bounds}
	c.throttle = c.newThrottle()
	return c
}

func (c *Controller) newThrottle() *rate.Limiter {
	return rate.NewLimiter(rate.Every(c.cfg.ReportInterval), 1)
}

// Velocity returns the current smoothed velocity.
func (c *Controller) Velocity() core.Vec2 {
	return c.velocity
}

// Reset stops the player, typically after a respawn relocated them.
func (c *Controller) Reset() {
	c.velocity = core.Vec2{}
	c.last = time.Time{}
	c.throttle = c.newThrottle()
}

// TargetVelocity is the velocity the input asks for at the given speed. On
// diagonals each component is scaled by 1/√2 so the magnitude stays speed.
func TargetVelocity(in Input, speed float64) core.Vec2 {
	v := in.Vector()
	if v.X != 0 && v.Y != 0 {
		v = v.Scale(1 / math.Sqrt2)
	}
	return v.Scale(speed)
}

// Step advances the local player to now. Without a local player it does nothing.
func (c *Controller) Step(a *arena.Arena, in Input, now time.Time) Update {
	p, ok := a.Local()
	if !ok {
		return Update{}
	}

	dt := 0.0
	if !c.last.IsZero() && now.After(c.last) {
		dt = math.Min(now.Sub(c.last).Seconds(), c.cfg.MaxStep.Seconds())
	}
	c.last = now

	if p.Eliminated {
		c.velocity = core.Vec2{}
		changed := p.Moving
		p.Moving = false
		return Update{Position: p.Position, Facing: p.Facing, DirectionChanged: changed}
	}

	target := TargetVelocity(in, p.Stats.WithDefaults().Speed)
	c.velocity = approach(c.velocity, target, c.rate(target)*dt)

	pos := p.Position.Add(c.velocity.Scale(dt))
	if c.bounds != nil {
		clamped := c.bounds.Clamp(pos)
		if clamped.X != pos.X {
			c.velocity.X = 0
		}
		if clamped.Y != pos.Y {
			c.velocity.Y = 0
		}
		pos = clamped
	}

	facing := core.FacingFromVector(in.Vector(), p.Facing)
	moving := c.velocity.Len() > 1e-6
	changed := facing != p.Facing || moving != p.Moving

	p.Position = pos
	p.Facing = facing
	p.Moving = moving

	up := Update{
		Position:         pos,
		Velocity:         c.velocity,
		Facing:           facing,
		Moving:           moving,
		DirectionChanged: changed,
	}
	// state changes go out at once; plain motion is throttled
	switch {
	case changed:
		up.Report = true
		c.throttle.AllowN(now, 1)
	case moving:
		up.Report = c.throttle.AllowN(now, 1)
	}
	return up
}

func (c *Controller) rate(target core.Vec2) float64 {
	if target.Len() == 0 {
		return c.cfg.Deceleration
	}
	return c.cfg.Acceleration
}

// approach moves v toward target by at most step.
func approach(v, target core.Vec2, step float64) core.Vec2 {
	diff := target.Sub(v)
	if diff.Len() <= step {
		return target
	}
	return v.Add(diff.Normalize().Scale(step))
}
