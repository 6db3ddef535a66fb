// Package projectile spawns, advances and resolves shots in flight.
//
// Only projectiles fired by this client are authoritative: they test for
// collisions and apply damage. Shots mirrored from peers are cosmetic and
// simply travel to their target.
package projectile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/internal/combat"
	"github.com/OCAP2/arena/internal/lifecycle"
	"github.com/OCAP2/arena/pkg/core"
)

var (
	ErrUnknownShooter    = errors.New("unknown shooter")
	ErrShooterEliminated = errors.New("shooter is eliminated")
	ErrCooldown          = errors.New("weapon cooling down")
	ErrBadTrajectory     = errors.New("trajectory is not finite")
)

// Config holds the projectile tuning constants.
type Config struct {
	Speed       float64       // units per second
	Epsilon     float64       // arrival tolerance
	HitRadius   float64       // collision radius around a player
	CooldownK   float64       // cooldown = K / shotsPerMinute seconds
	MinCooldown time.Duration // lower bound on the cooldown
	AimScale    float64       // range stat to units
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Speed:       1200,
		Epsilon:     10,
		HitRadius:   25,
		CooldownK:   15,
		MinCooldown: 50 * time.Millisecond,
		AimScale:    combat.DefaultAimScale,
	}
}

// Hit is a resolved collision of an authoritative projectile.
type Hit struct {
	ProjectileID uint64
	ShooterID    string
	VictimID     string
	Damage       int
	Position     core.Vec2
	Outcome      lifecycle.Outcome
}

// Simulator owns fire cooldowns and per-projectile step times.
type Simulator struct {
	cfg      Config
	health   *lifecycle.Manager
	lastShot map[string]time.Time
	stepped  map[uint64]time.Time
}

// New creates a simulator that applies hits through health.
func New(cfg Config, health *lifecycle.Manager) *Simulator {
	return &Simulator{
		cfg:      cfg,
		health:   health,
		lastShot: make(map[string]time.Time),
		stepped:  make(map[uint64]time.Time),
	}
}

// Cooldown is the minimum time between two shots at the given rate.
func (s *Simulator) Cooldown(shotsPerMinute float64) time.Duration {
	if shotsPerMinute <= 0 {
		shotsPerMinute = core.DefaultShotsPerMinute
	}
	cd := time.Duration(s.cfg.CooldownK / shotsPerMinute * float64(time.Second))
	if cd < s.cfg.MinCooldown {
		return s.cfg.MinCooldown
	}
	return cd
}

// Fire launches an authoritative projectile from the shooter toward rawTarget,
// clamped to the shooter's range.
func (s *Simulator) Fire(a *arena.Arena, shooterID string, rawTarget core.Vec2, now time.Time) (*core.Projectile, error) {
	shooter, ok := a.Player(shooterID)
	if !ok {
		return nil, fmt.Errorf("fire %s: %w", shooterID, ErrUnknownShooter)
	}
	if shooter.Eliminated {
		return nil, fmt.Errorf("fire %s: %w", shooterID, ErrShooterEliminated)
	}
	stats := shooter.Stats.WithDefaults()
	if last, ok := s.lastShot[shooterID]; ok && now.Sub(last) < s.Cooldown(stats.ShotsPerMinute) {
		return nil, fmt.Errorf("fire %s: %w", shooterID, ErrCooldown)
	}

	target := combat.ClampTarget(shooter.Position, rawTarget, stats.ShootRange, s.cfg.AimScale)
	p, err := s.spawn(a, shooterID, shooter.Position, target, stats.HitPower, true, now)
	if err != nil {
		return nil, fmt.Errorf("fire %s: %w", shooterID, err)
	}
	s.lastShot[shooterID] = now
	return p, nil
}

// SpawnRemote mirrors a peer's shot as a cosmetic projectile. The target is
// clamped to the shooter's range, or the default range for a shooter this
// client does not know.
func (s *Simulator) SpawnRemote(a *arena.Arena, shooterID string, start, target core.Vec2, damage int, now time.Time) (*core.Projectile, error) {
	rangeStat := core.DefaultShootRange
	if shooter, ok := a.Player(shooterID); ok {
		rangeStat = shooter.Stats.WithDefaults().ShootRange
	}
	target = combat.ClampTarget(start, target, rangeStat, s.cfg.AimScale)
	p, err := s.spawn(a, shooterID, start, target, damage, false, now)
	if err != nil {
		return nil, fmt.Errorf("mirror shot of %s: %w", shooterID, err)
	}
	return p, nil
}

// spawn refuses a trajectory that could never arrive, so every projectile is
// eventually destroyed.
func (s *Simulator) spawn(a *arena.Arena, shooterID string, origin, target core.Vec2, damage int, authoritative bool, now time.Time) (*core.Projectile, error) {
	velocity := target.Sub(origin).Normalize().Scale(s.cfg.Speed)
	distance := origin.Dist(target)
	if !finite(origin.X, origin.Y, velocity.X, velocity.Y, distance) {
		return nil, ErrBadTrajectory
	}
	p := a.AddProjectile(core.Projectile{
		ShooterID:     shooterID,
		Origin:        origin,
		Position:      origin,
		Target:        target,
		Velocity:      velocity,
		Damage:        damage,
		Distance:      distance,
		CreatedAt:     now,
		Authoritative: authoritative,
	})
	s.stepped[p.ID] = now
	return p, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Advance moves every live projectile to now. Projectiles that arrive are
// removed without a hit; authoritative ones that touch a live player other than
// the shooter deal their damage and are removed.
func (s *Simulator) Advance(a *arena.Arena, now time.Time) []Hit {
	var hits []Hit
	for _, p := range a.Projectiles() {
		last, ok := s.stepped[p.ID]
		if !ok {
			last = p.CreatedAt
		}
		if now.Before(last) {
			continue
		}
		dt := now.Sub(last).Seconds()
		s.stepped[p.ID] = now

		p.Position = p.Position.Add(p.Velocity.Scale(dt))
		p.Traveled += p.Velocity.Len() * dt

		if p.Traveled >= p.Distance || p.Remaining() < s.cfg.Epsilon {
			s.destroy(a, p.ID)
			continue
		}
		if !p.Authoritative {
			continue
		}
		victim := s.nearestVictim(a, p)
		if victim == nil {
			continue
		}
		// removed before damage so the same projectile can never land twice
		s.destroy(a, p.ID)
		hit := Hit{
			ProjectileID: p.ID,
			ShooterID:    p.ShooterID,
			VictimID:     victim.ID,
			Damage:       combat.Flat(p.Damage),
			Position:     p.Position,
		}
		out, err := s.health.ApplyDamage(a, victim.ID, hit.Damage, p.ShooterID, now)
		if err != nil {
			continue
		}
		hit.Outcome = out
		hits = append(hits, hit)
	}
	return hits
}

// Forget drops the cooldown of a player that left.
func (s *Simulator) Forget(playerID string) {
	delete(s.lastShot, playerID)
}

func (s *Simulator) destroy(a *arena.Arena, id uint64) {
	a.RemoveProjectile(id)
	delete(s.stepped, id)
}

func (s *Simulator) nearestVictim(a *arena.Arena, p *core.Projectile) *core.PlayerState {
	var (
		best     *core.PlayerState
		bestDist = math.Inf(1)
	)
	for _, pl := range a.Players() {
		if pl.ID == p.ShooterID || pl.Eliminated {
			continue
		}
		if d := p.Position.Dist(pl.Position); d <= s.cfg.HitRadius && d < bestDist {
			best, bestDist = pl, d
		}
	}
	return best
}
