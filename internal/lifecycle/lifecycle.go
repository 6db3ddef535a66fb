// Package lifecycle applies damage and respawns to players in the arena.
//
// Every player is either Alive or Eliminated. Health reaching zero eliminates
// a player; only a respawn brings them back.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/pkg/core"
)

var (
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrInvalidRespawn = errors.New("respawn health must be positive")
)

// Observer receives elimination and respawn cues.
type Observer interface {
	Eliminated(core.EliminationEvent)
	Respawned(core.RespawnEvent)
}

// NopObserver ignores every cue.
type NopObserver struct{}

func (NopObserver) Eliminated(core.EliminationEvent) {}
func (NopObserver) Respawned(core.RespawnEvent)      {}

// Outcome reports what a single health change did.
type Outcome struct {
	PlayerID   string
	Previous   int
	Health     int
	Applied    int
	Eliminated bool // true only on the Alive -> Eliminated transition
	Ignored    bool // target was already eliminated
}

// Manager applies health changes and reports transitions to an Observer.
type Manager struct {
	matchCode string
	observer  Observer
}

// NewManager creates a manager for one match. A nil observer is allowed.
func NewManager(matchCode string, observer Observer) *Manager {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Manager{matchCode: matchCode, observer: observer}
}

// ApplyDamage subtracts damage from a player's health. Negative damage counts as
// zero and eliminated players take no further damage.
func (m *Manager) ApplyDamage(a *arena.Arena, id string, damage int, sourceID string, now time.Time) (Outcome, error) {
	p, ok := a.Player(id)
	if !ok {
		return Outcome{}, fmt.Errorf("apply damage to %s: %w", id, ErrUnknownPlayer)
	}
	if damage < 0 {
		damage = 0
	}
	out := Outcome{PlayerID: id, Previous: p.Health, Health: p.Health}
	if p.Eliminated {
		out.Ignored = true
		return out, nil
	}

	p.Health = core.ClampHealth(p.Health - damage)
	out.Health = p.Health
	out.Applied = out.Previous - out.Health
	if p.Health == 0 {
		m.eliminate(p, sourceID, now)
		out.Eliminated = true
	}
	return out, nil
}

// Mirror applies a health value reported by another client. The last value
// received wins; values are clamped to [0, MaxHealth].
func (m *Manager) Mirror(a *arena.Arena, id string, health int, sourceID string, now time.Time) (Outcome, error) {
	p, ok := a.Player(id)
	if !ok {
		return Outcome{}, fmt.Errorf("mirror health of %s: %w", id, ErrUnknownPlayer)
	}
	out := Outcome{PlayerID: id, Previous: p.Health, Health: p.Health}
	if p.Eliminated {
		out.Ignored = true
		return out, nil
	}

	p.Health = core.ClampHealth(health)
	out.Health = p.Health
	out.Applied = out.Previous - out.Health
	if p.Health == 0 {
		m.eliminate(p, sourceID, now)
		out.Eliminated = true
	}
	return out, nil
}

// Eliminate forces a player into the Eliminated state, for a relay defeat
// notice that arrives before the matching health update. It reports whether the
// player transitioned.
func (m *Manager) Eliminate(a *arena.Arena, id string, now time.Time) (bool, error) {
	p, ok := a.Player(id)
	if !ok {
		return false, fmt.Errorf("eliminate %s: %w", id, ErrUnknownPlayer)
	}
	if p.Eliminated {
		return false, nil
	}
	p.Health = 0
	m.eliminate(p, "", now)
	return true, nil
}

// Respawn restores a player with the carried health at pos.
func (m *Manager) Respawn(a *arena.Arena, id string, health int, pos core.Vec2, now time.Time) (Outcome, error) {
	p, ok := a.Player(id)
	if !ok {
		return Outcome{}, fmt.Errorf("respawn %s: %w", id, ErrUnknownPlayer)
	}
	health = core.ClampHealth(health)
	if health == 0 {
		return Outcome{}, fmt.Errorf("respawn %s: %w", id, ErrInvalidRespawn)
	}

	out := Outcome{PlayerID: id, Previous: p.Health}
	p.Health = health
	p.Eliminated = false
	p.Position = pos
	p.Moving = false
	out.Health = health

	m.observer.Respawned(core.RespawnEvent{
		MatchCode: m.matchCode,
		PlayerID:  id,
		Health:    health,
		Position:  pos,
		Time:      now,
	})
	return out, nil
}

func (m *Manager) eliminate(p *core.PlayerState, killerID string, now time.Time) {
	p.Eliminated = true
	p.Moving = false
	m.observer.Eliminated(core.EliminationEvent{
		MatchCode: m.matchCode,
		PlayerID:  p.ID,
		Name:      p.Name,
		KillerID:  killerID,
		Time:      now,
		Position:  p.Position,
	})
}
