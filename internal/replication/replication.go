// Package replication smooths relay-reported positions of remote players.
package replication

import (
	"time"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/pkg/core"
)

// DefaultDuration is how long a remote player takes to reach a reported position.
const DefaultDuration = 100 * time.Millisecond

type tween struct {
	from, to core.Vec2
	start    time.Time
}

// Interpolator tweens remote players toward their last reported position.
// It is owned by the session tick loop.
type Interpolator struct {
	duration time.Duration
	tweens   map[string]tween
}

// New creates an interpolator. A non-positive duration uses DefaultDuration.
func New(duration time.Duration) *Interpolator {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Interpolator{duration: duration, tweens: make(map[string]tween)}
}

// Report starts a tween for id toward target, replacing any tween in flight.
// Reports about the local player or unknown ids are ignored. It reports whether
// a tween was started.
func (r *Interpolator) Report(a *arena.Arena, id string, target core.Vec2, now time.Time) bool {
	if id == a.LocalID() {
		return false
	}
	p, ok := a.Player(id)
	if !ok {
		return false
	}
	r.tweens[id] = tween{from: p.Position, to: target, start: now}
	p.Moving = true
	if dir := target.Sub(p.Position); dir.Len() > 0 {
		p.Facing = core.FacingFromVector(dir, p.Facing)
	}
	return true
}

// Step moves every tweened player to its position at now. Finished tweens
// leave the player at the target and idle.
func (r *Interpolator) Step(a *arena.Arena, now time.Time) {
	for id, tw := range r.tweens {
		p, ok := a.Player(id)
		if !ok {
			delete(r.tweens, id)
			continue
		}
		t := float64(now.Sub(tw.start)) / float64(r.duration)
		if t >= 1 {
			p.Position = tw.to
			p.Moving = false
			delete(r.tweens, id)
			continue
		}
		if t < 0 {
			t = 0
		}
		p.Position = tw.from.Lerp(tw.to, t)
	}
}

// Forget drops any tween for id.
func (r *Interpolator) Forget(id string) {
	delete(r.tweens, id)
}

// Active reports whether id has a tween in flight.
func (r *Interpolator) Active(id string) bool {
	_, ok := r.tweens[id]
	return ok
}

// Reset drops every tween.
func (r *Interpolator) Reset() {
	r.tweens = make(map[string]tween)
}
