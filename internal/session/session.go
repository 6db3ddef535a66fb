// Package session runs one match on this client: it owns the arena, feeds relay
// messages through the dispatcher and advances the simulation on a fixed tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/internal/combat"
	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/dispatcher"
	"github.com/OCAP2/arena/internal/lifecycle"
	"github.com/OCAP2/arena/internal/match"
	"github.com/OCAP2/arena/internal/movement"
	"github.com/OCAP2/arena/internal/projectile"
	"github.com/OCAP2/arena/internal/replication"
	"github.com/OCAP2/arena/internal/storage"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"

	"go.opentelemetry.io/otel/metric"
)

// ErrDisconnected is returned by Run when the relay channel gives up.
var ErrDisconnected = errors.New("relay channel closed")

// maxDrain bounds how many inbound messages one tick applies.
const maxDrain = 1024

// Channel is the relay connection. transport.Client satisfies it.
type Channel interface {
	Send(msgType string, payload any) error
	Inbound() <-chan protocol.Envelope
	Done() <-chan struct{}
}

// Input is one tick of local controls.
type Input struct {
	Move movement.Input
	Aim  core.Vec2 // raw pointer position in world units
	Fire bool
	Chat string
}

// InputFunc samples the local controls for a tick.
type InputFunc func(now time.Time) Input

// Deps holds everything a session needs. Channel and Player.ID are required.
type Deps struct {
	MatchCode  string
	Player     core.PlayerState
	Channel    Channel
	Codec      protocol.Codec
	Dispatcher *dispatcher.Dispatcher
	Backend    storage.Backend
	Observer   Observer
	Logger     *slog.Logger
	Sim        config.SimConfig
	Meter      metric.Meter
}

// Session is not safe for concurrent use; Run drives it from a single goroutine.
type Session struct {
	deps    Deps
	log     *slog.Logger
	codec   protocol.Codec
	disp    *dispatcher.Dispatcher
	backend storage.Backend
	obs     Observer

	arena   *arena.Arena
	machine *match.Machine
	health  *lifecycle.Manager
	shots   *projectile.Simulator
	move    *movement.Controller
	interp  *replication.Interpolator

	tick     time.Duration
	aimScale float64
	reticle  core.Vec2
	entered  bool
	started  bool

	status  atomic.Value // core.MatchStatus, read by log context
	summary atomic.Pointer[Summary]
	metrics *telemetry
}

// New builds a session with the local player placed in an empty arena.
func New(deps Deps) (*Session, error) {
	if deps.Channel == nil {
		return nil, errors.New("session needs a relay channel")
	}
	if deps.Player.ID == "" {
		return nil, errors.New("session needs a local player id")
	}
	if deps.MatchCode == "" {
		return nil, errors.New("session needs a match code")
	}
	if deps.Codec == nil {
		deps.Codec = protocol.JSON{}
	}
	if deps.Backend == nil {
		deps.Backend = storage.Nop{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	log := deps.Logger.With("component", "session", "match", deps.MatchCode)

	if deps.Dispatcher == nil {
		d, err := dispatcher.New(log)
		if err != nil {
			return nil, fmt.Errorf("creating dispatcher: %w", err)
		}
		deps.Dispatcher = d
	}

	metrics, err := newTelemetry(deps.Meter)
	if err != nil {
		return nil, err
	}

	s := &Session{
		deps:     deps,
		log:      log,
		codec:    deps.Codec,
		disp:     deps.Dispatcher,
		backend:  deps.Backend,
		obs:      deps.Observer,
		arena:    arena.New(deps.Player.ID),
		machine:  match.NewMachine(deps.MatchCode),
		interp:   replication.New(deps.Sim.InterpDuration),
		tick:     deps.Sim.TickRate,
		aimScale: deps.Sim.AimScale,
		metrics:  metrics,
	}
	if s.tick <= 0 {
		s.tick = 16 * time.Millisecond
	}
	if s.aimScale <= 0 {
		s.aimScale = combat.DefaultAimScale
	}
	s.health = lifecycle.NewManager(deps.MatchCode, cues{s})
	s.shots = projectile.New(projectileConfig(deps.Sim), s.health)
	s.move = movement.NewController(movementConfig(deps.Sim), bounds(deps.Sim.Bounds))

	local := deps.Player
	if local.Health == 0 && !local.Eliminated {
		local.Health = core.MaxHealth
	}
	s.arena.AddPlayer(local)
	s.reticle = local.Position
	s.setStatus()
	return s, nil
}

func projectileConfig(sim config.SimConfig) projectile.Config {
	cfg := projectile.DefaultConfig()
	if sim.ProjectileSpeed > 0 {
		cfg.Speed = sim.ProjectileSpeed
	}
	if sim.ProjectileEpsilon > 0 {
		cfg.Epsilon = sim.ProjectileEpsilon
	}
	if sim.HitRadius > 0 {
		cfg.HitRadius = sim.HitRadius
	}
	if sim.CooldownK > 0 {
		cfg.CooldownK = sim.CooldownK
	}
	if sim.MinCooldown > 0 {
		cfg.MinCooldown = sim.MinCooldown
	}
	if sim.AimScale > 0 {
		cfg.AimScale = sim.AimScale
	}
	return cfg
}

func movementConfig(sim config.SimConfig) movement.Config {
	cfg := movement.DefaultConfig()
	if sim.Acceleration > 0 {
		cfg.Acceleration = sim.Acceleration
	}
	if sim.Deceleration > 0 {
		cfg.Deceleration = sim.Deceleration
	}
	if sim.ReportInterval > 0 {
		cfg.ReportInterval = sim.ReportInterval
	}
	return cfg
}

// bounds returns nil for an empty rectangle so movement is unbounded.
func bounds(b config.BoundsConfig) movement.Bounds {
	if b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return nil
	}
	return movement.Rect{
		Min: core.Vec2{X: b.MinX, Y: b.MinY},
		Max: core.Vec2{X: b.MaxX, Y: b.MaxY},
	}
}

// Enter registers the inbound handlers and asks the relay to join the match.
func (s *Session) Enter() error {
	if s.entered {
		return nil
	}
	s.RegisterHandlers(s.disp)
	s.entered = true

	local, _ := s.arena.Local()
	stats := local.Stats
	if err := s.deps.Channel.Send(protocol.TypeJoinMatch, protocol.JoinMatch{
		MatchCode: s.deps.MatchCode,
		PlayerID:  local.ID,
		Name:      local.Name,
		Stats:     &stats,
	}); err != nil {
		return fmt.Errorf("join %s: %w", s.deps.MatchCode, err)
	}
	s.log.Info("Joining match", "player", local.ID)
	return nil
}

// Exit unregisters the handlers. A match that started here but never ended is
// closed in the sink with the local ranking.
func (s *Session) Exit() error {
	if !s.entered {
		return nil
	}
	s.disp.Unregister(handledTypes...)
	s.entered = false

	if s.started && !s.machine.Frozen() {
		res, _ := s.machine.End(s.arena.Snapshot())
		s.setStatus()
		if err := s.backend.EndMatch(res); err != nil {
			return fmt.Errorf("closing match in sink: %w", err)
		}
	}
	s.log.Info("Left match")
	return nil
}

// Run ticks until ctx is done or the relay channel closes. Each tick applies the
// queued relay messages first and then steps the simulation.
func (s *Session) Run(ctx context.Context, inputs InputFunc) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.deps.Channel.Done():
			s.Drain(time.Now())
			return ErrDisconnected
		case now := <-ticker.C:
			s.Drain(now)
			var in Input
			if inputs != nil {
				in = inputs(now)
			}
			s.Step(in, now)
		}
	}
}

// Drain applies the relay messages already queued without waiting for more.
func (s *Session) Drain(now time.Time) int {
	inbound := s.deps.Channel.Inbound()
	for n := 0; n < maxDrain; n++ {
		select {
		case env, ok := <-inbound:
			if !ok {
				return n
			}
			s.Handle(env, now)
		default:
			return n
		}
	}
	return maxDrain
}

// Handle routes one relay message to its handler. Unknown types are ignored.
func (s *Session) Handle(env protocol.Envelope, now time.Time) {
	err := s.disp.Dispatch(dispatcher.Event{Type: env.Type, Payload: env.Payload, Timestamp: now})
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrUnknownType):
		s.log.Debug("Ignoring message", "type", env.Type)
	default:
		s.metrics.rejected(env.Type)
	}
}

// Step advances the local simulation to now. Nothing moves unless the match is
// active; chat goes out in any phase.
func (s *Session) Step(in Input, now time.Time) {
	defer s.summarize(now)
	if in.Chat != "" {
		s.sendChat(in.Chat)
	}
	if !s.machine.Active() {
		return
	}

	up := s.move.Step(s.arena, in.Move, now)
	if up.Report {
		s.send(protocol.TypePlayerMove, protocol.PlayerMove{
			MatchCode: s.deps.MatchCode,
			PlayerID:  s.arena.LocalID(),
			X:         protocol.Float(up.Position.X),
			Y:         protocol.Float(up.Position.Y),
		})
	}

	if local, ok := s.arena.Local(); ok {
		stats := local.Stats.WithDefaults()
		s.reticle = combat.ClampTarget(local.Position, in.Aim, stats.ShootRange, s.aimScale)
	}

	if in.Fire {
		s.fire(in.Aim, now)
	}

	for _, hit := range s.shots.Advance(s.arena, now) {
		s.reportHit(hit, now)
	}

	s.interp.Step(s.arena, now)
}

func (s *Session) fire(aim core.Vec2, now time.Time) {
	p, err := s.shots.Fire(s.arena, s.arena.LocalID(), aim, now)
	if err != nil {
		if !errors.Is(err, projectile.ErrCooldown) {
			s.log.Debug("Shot rejected", "error", err)
		}
		return
	}
	s.metrics.shot()
	s.send(protocol.TypePlayerShoot, protocol.NewPlayerShoot(s.deps.MatchCode, p.ShooterID, p.Origin, p.Target, p.Damage))
	s.record("shot", s.backend.RecordShot(&core.ShotEvent{
		MatchCode: s.deps.MatchCode,
		ShooterID: p.ShooterID,
		Time:      now,
		Origin:    p.Origin,
		Target:    p.Target,
		Damage:    p.Damage,
	}))
}

func (s *Session) reportHit(hit projectile.Hit, now time.Time) {
	if hit.Outcome.Ignored {
		return
	}
	s.metrics.hit()
	s.send(protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{
		MatchCode: s.deps.MatchCode,
		PlayerID:  hit.VictimID,
		Health:    protocol.Int(hit.Outcome.Health),
		ShooterID: hit.ShooterID,
		Damage:    hit.Damage,
	})
	s.record("hit", s.backend.RecordHit(&core.HitEvent{
		MatchCode: s.deps.MatchCode,
		ShooterID: hit.ShooterID,
		VictimID:  hit.VictimID,
		Time:      now,
		Damage:    hit.Outcome.Applied,
		Health:    hit.Outcome.Health,
		Position:  hit.Position,
	}))
}

func (s *Session) sendChat(text string) {
	s.send(protocol.TypeSendChatMessage, protocol.SendChatMessage{
		MatchCode: s.deps.MatchCode,
		SenderID:  s.arena.LocalID(),
		Text:      text,
	})
}

// send never fails the tick; a lost message is logged and counted.
func (s *Session) send(msgType string, payload any) {
	if err := s.deps.Channel.Send(msgType, payload); err != nil {
		s.metrics.sendFailed(msgType)
		s.log.Warn("Failed to send", "type", msgType, "error", err)
	}
}

func (s *Session) record(kind string, err error) {
	if err != nil {
		s.log.Warn("Failed to record event", "kind", kind, "error", err)
	}
}

func (s *Session) setStatus() {
	s.status.Store(s.machine.Status())
}

// Arena exposes the world state for presentation and input sampling.
func (s *Session) Arena() *arena.Arena { return s.arena }

// Machine exposes the match lifecycle.
func (s *Session) Machine() *match.Machine { return s.machine }

// Reticle is the aim point clamped to the local player's range on the last tick.
func (s *Session) Reticle() core.Vec2 { return s.reticle }

// Cooldown returns the local player's minimum time between shots.
func (s *Session) Cooldown() time.Duration {
	local, ok := s.arena.Local()
	if !ok {
		return 0
	}
	return s.shots.Cooldown(local.Stats.WithDefaults().ShotsPerMinute)
}

// LogContext returns the attributes the logging context handler adds to every
// record. It is safe to call from any goroutine.
func (s *Session) LogContext() []slog.Attr {
	status, _ := s.status.Load().(core.MatchStatus)
	return []slog.Attr{
		slog.String("match", s.deps.MatchCode),
		slog.String("player", s.deps.Player.ID),
		slog.String("status", string(status)),
	}
}

// Summary is the state of the session as of its last tick.
type Summary struct {
	Time        time.Time
	Status      core.MatchStatus
	TimeLeft    int
	Players     int
	Alive       int
	Projectiles int
	Health      int
	Cooldown    time.Duration
}

func (s *Session) summarize(now time.Time) {
	sum := &Summary{
		Time:        now,
		Status:      s.machine.Status(),
		TimeLeft:    s.machine.TimeLeft(),
		Projectiles: len(s.arena.Projectiles()),
		Cooldown:    s.Cooldown(),
	}
	for _, p := range s.arena.Players() {
		sum.Players++
		if !p.Eliminated {
			sum.Alive++
		}
		if p.IsLocal {
			sum.Health = p.Health
		}
	}
	s.summary.Store(sum)
}

// Summary returns the state as of the last Step. It is safe to call from any
// goroutine; ok is false before the first Step.
func (s *Session) Summary() (Summary, bool) {
	sum := s.summary.Load()
	if sum == nil {
		return Summary{}, false
	}
	return *sum, true
}
