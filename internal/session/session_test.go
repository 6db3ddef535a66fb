package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/arena/internal/movement"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMsg struct {
	Type    string
	Payload any
}

// fakeChannel records outbound messages and serves queued inbound ones.
type fakeChannel struct {
	sent []sentMsg
	in   chan protocol.Envelope
	done chan struct{}
	err  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{in: make(chan protocol.Envelope, 64), done: make(chan struct{})}
}

func (c *fakeChannel) Send(msgType string, payload any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMsg{Type: msgType, Payload: payload})
	return nil
}

func (c *fakeChannel) Inbound() <-chan protocol.Envelope { return c.in }
func (c *fakeChannel) Done() <-chan struct{}             { return c.done }

func (c *fakeChannel) ofType(msgType string) []any {
	var out []any
	for _, m := range c.sent {
		if m.Type == msgType {
			out = append(out, m.Payload)
		}
	}
	return out
}

// mockBackend records what the session writes to its sink.
type mockBackend struct {
	started      []*core.MatchInfo
	ended        []core.MatchResult
	shots        []*core.ShotEvent
	hits         []*core.HitEvent
	eliminations []*core.EliminationEvent
	respawns     []*core.RespawnEvent

	mu    sync.Mutex
	chats []*core.ChatEvent
}

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }
func (b *mockBackend) StartMatch(info *core.MatchInfo) error {
	b.started = append(b.started, info)
	return nil
}
func (b *mockBackend) EndMatch(res core.MatchResult) error {
	b.ended = append(b.ended, res)
	return nil
}
func (b *mockBackend) RecordShot(e *core.ShotEvent) error {
	b.shots = append(b.shots, e)
	return nil
}
func (b *mockBackend) RecordHit(e *core.HitEvent) error {
	b.hits = append(b.hits, e)
	return nil
}
func (b *mockBackend) RecordElimination(e *core.EliminationEvent) error {
	b.eliminations = append(b.eliminations, e)
	return nil
}
func (b *mockBackend) RecordRespawn(e *core.RespawnEvent) error {
	b.respawns = append(b.respawns, e)
	return nil
}
func (b *mockBackend) RecordChat(e *core.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats = append(b.chats, e)
	return nil
}

func (b *mockBackend) chatLog() []*core.ChatEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*core.ChatEvent(nil), b.chats...)
}

type mockObserver struct {
	NopObserver
	started     int
	eliminated  []core.EliminationEvent
	respawned   []core.RespawnEvent
	ended       []core.MatchResult
	leaderboard [][]protocol.LeaderboardRow

	mu   sync.Mutex
	chat []core.ChatEvent
}

func (o *mockObserver) MatchStarted(core.MatchState)       { o.started++ }
func (o *mockObserver) Eliminated(e core.EliminationEvent) { o.eliminated = append(o.eliminated, e) }
func (o *mockObserver) Respawned(e core.RespawnEvent)      { o.respawned = append(o.respawned, e) }
func (o *mockObserver) MatchEnded(r core.MatchResult)      { o.ended = append(o.ended, r) }
func (o *mockObserver) Leaderboard(r []protocol.LeaderboardRow) {
	o.leaderboard = append(o.leaderboard, r)
}

func (o *mockObserver) Chat(e core.ChatEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chat = append(o.chat, e)
}

func (o *mockObserver) chatLog() []core.ChatEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.ChatEvent(nil), o.chat...)
}

type fixture struct {
	s     *Session
	ch    *fakeChannel
	b     *mockBackend
	obs   *mockObserver
	codec protocol.Codec
	t0    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newCodecFixture(t, protocol.JSON{})
}

func newCodecFixture(t *testing.T, codec protocol.Codec) *fixture {
	t.Helper()
	f := &fixture{
		ch:    newFakeChannel(),
		b:     &mockBackend{},
		obs:   &mockObserver{},
		codec: codec,
		t0:    time.Unix(1700000000, 0),
	}
	s, err := New(Deps{
		Codec:     codec,
		MatchCode: "M1",
		Player:    core.NewPlayerState("p1", "Ann", core.Vec2{}, core.Stats{}),
		Channel:   f.ch,
		Backend:   f.b,
		Observer:  f.obs,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, s.Enter())
	f.s = s
	return f
}

func (f *fixture) handle(t *testing.T, msgType string, payload any, now time.Time) {
	t.Helper()
	frame, err := f.codec.Encode(msgType, payload)
	require.NoError(t, err)
	env, err := f.codec.DecodeEnvelope(frame)
	require.NoError(t, err)
	f.s.Handle(env, now)
}

func testSettings() core.MatchSettings {
	return core.MatchSettings{DurationSeconds: 60, MapID: "dunes", Mode: core.ModeFriendly}
}

// start begins a match with the local player at the origin and p2 at (100, 0).
func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.handle(t, protocol.TypeMatchStarted, protocol.MatchSnapshot{Match: core.MatchState{
		Code:     "M1",
		Settings: testSettings(),
		Players: []core.PlayerState{
			core.NewPlayerState("p1", "Ann", core.Vec2{X: 500, Y: 500}, core.Stats{}),
			core.NewPlayerState("p2", "Bob", core.Vec2{X: 100, Y: 0}, core.Stats{}),
		},
		TimeLeft: 60,
	}}, f.t0)
	require.True(t, f.s.Machine().Active())
}

func (f *fixture) player(t *testing.T, id string) *core.PlayerState {
	t.Helper()
	p, ok := f.s.Arena().Player(id)
	require.True(t, ok, "player %s", id)
	return p
}

func TestNewRequiresChannelAndPlayer(t *testing.T) {
	_, err := New(Deps{MatchCode: "M1", Player: core.PlayerState{ID: "p1"}})
	assert.Error(t, err)
	_, err = New(Deps{MatchCode: "M1", Channel: newFakeChannel()})
	assert.Error(t, err)
	_, err = New(Deps{Player: core.PlayerState{ID: "p1"}, Channel: newFakeChannel()})
	assert.Error(t, err)
}

func TestEnterSendsJoinAndRegisters(t *testing.T) {
	f := newFixture(t)

	joins := f.ch.ofType(protocol.TypeJoinMatch)
	require.Len(t, joins, 1)
	join := joins[0].(protocol.JoinMatch)
	assert.Equal(t, "M1", join.MatchCode)
	assert.Equal(t, "p1", join.PlayerID)
	assert.NotNil(t, join.Stats)

	for _, typ := range handledTypes {
		assert.True(t, f.s.disp.HasHandler(typ), typ)
	}

	require.NoError(t, f.s.Exit())
	assert.Empty(t, f.s.disp.Types())
	assert.Empty(t, f.b.ended, "a match that never started is not closed")
}

func TestEnterReportsSendFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.err = errors.New("queue full")
	s, err := New(Deps{MatchCode: "M1", Player: core.PlayerState{ID: "p1"}, Channel: ch})
	require.NoError(t, err)
	assert.Error(t, s.Enter())
}

func TestStepDoesNothingInLobby(t *testing.T) {
	f := newFixture(t)
	f.s.Step(Input{Move: movement.Input{Right: true}, Fire: true, Aim: core.Vec2{X: 10}}, f.t0)
	f.s.Step(Input{Move: movement.Input{Right: true}, Fire: true}, f.t0.Add(100*time.Millisecond))

	assert.Empty(t, f.ch.ofType(protocol.TypePlayerMove))
	assert.Empty(t, f.ch.ofType(protocol.TypePlayerShoot))
	assert.Equal(t, core.Vec2{}, f.player(t, "p1").Position)
}

func TestMatchStartedOpensSink(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	require.Len(t, f.b.started, 1)
	info := f.b.started[0]
	assert.Equal(t, "M1", info.Code)
	assert.Equal(t, "p1", info.LocalID)
	assert.Len(t, info.Players, 2)
	assert.Equal(t, 1, f.obs.started)
	assert.Equal(t, core.StatusActive, f.s.Machine().Status())

	// the relay's spawn point for us does not move the local player
	assert.Equal(t, core.Vec2{}, f.player(t, "p1").Position)
	assert.Equal(t, core.Vec2{X: 100}, f.player(t, "p2").Position)
}

func TestMatchStartNeedsTwoPlayers(t *testing.T) {
	f := newFixture(t)
	f.handle(t, protocol.TypeMatchStarted, protocol.MatchSnapshot{Match: core.MatchState{
		Code:     "M1",
		Settings: testSettings(),
	}}, f.t0)

	assert.False(t, f.s.Machine().Active())
	assert.Empty(t, f.b.started)
}

func TestLocalPositionNeverOverwritten(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: "p1", X: protocol.Float(50), Y: protocol.Float(50)}, f.t0)
	f.handle(t, protocol.TypeMatchState, protocol.MatchSnapshot{Match: core.MatchState{
		Code:     "M1",
		Settings: testSettings(),
		Status:   core.StatusActive,
		TimeLeft: 50,
		Players: []core.PlayerState{
			core.NewPlayerState("p1", "Ann", core.Vec2{X: 70, Y: 70}, core.Stats{}),
			core.NewPlayerState("p2", "Bob", core.Vec2{X: 100, Y: 0}, core.Stats{}),
		},
	}}, f.t0)

	assert.Equal(t, core.Vec2{}, f.player(t, "p1").Position)
	assert.Equal(t, 50, f.s.Machine().TimeLeft())
}

func TestRemoteMoveIsInterpolated(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: "p2", X: protocol.Float(200), Y: protocol.Float(0)}, f.t0)
	f.s.Step(Input{}, f.t0.Add(50*time.Millisecond))
	p2 := f.player(t, "p2")
	assert.Greater(t, p2.Position.X, 100.0)
	assert.Less(t, p2.Position.X, 200.0)

	f.s.Step(Input{}, f.t0.Add(time.Second))
	assert.Equal(t, core.Vec2{X: 200}, p2.Position)
	assert.False(t, p2.Moving)
}

func TestStepReportsMovement(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.s.Step(Input{Move: movement.Input{Right: true}}, f.t0)
	f.s.Step(Input{Move: movement.Input{Right: true}}, f.t0.Add(100*time.Millisecond))

	moves := f.ch.ofType(protocol.TypePlayerMove)
	require.NotEmpty(t, moves)
	first := moves[0].(protocol.PlayerMove)
	assert.Equal(t, "p1", first.PlayerID)
	assert.Equal(t, "M1", first.MatchCode)
	assert.Greater(t, f.player(t, "p1").Position.X, 0.0)
	assert.Equal(t, core.FacingRight, f.player(t, "p1").Facing)
}

func TestFireHitsRemotePlayer(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.s.Step(Input{Aim: core.Vec2{X: 100}, Fire: true}, f.t0)
	shots := f.ch.ofType(protocol.TypePlayerShoot)
	require.Len(t, shots, 1)
	shot := shots[0].(protocol.PlayerShoot)
	assert.Equal(t, core.Vec2{X: 100}, shot.Target())
	assert.Equal(t, core.DefaultHitPower, *shot.Damage)
	require.Len(t, f.b.shots, 1)
	assert.False(t, f.b.shots[0].Cosmetic)

	// 70ms at 1200 u/s puts the projectile 16 units from p2
	f.s.Step(Input{}, f.t0.Add(70*time.Millisecond))

	updates := f.ch.ofType(protocol.TypePlayerHealthUpdate)
	require.Len(t, updates, 1)
	upd := updates[0].(protocol.PlayerHealthUpdate)
	assert.Equal(t, "p2", upd.PlayerID)
	assert.Equal(t, "p1", upd.ShooterID)
	assert.Equal(t, 90, *upd.Health)
	assert.Equal(t, 90, f.player(t, "p2").Health)
	require.Len(t, f.b.hits, 1)
	assert.Equal(t, 10, f.b.hits[0].Damage)
	assert.Empty(t, f.s.Arena().Projectiles())

	// the projectile is gone; later ticks never hit again
	f.s.Step(Input{}, f.t0.Add(200*time.Millisecond))
	assert.Len(t, f.ch.ofType(protocol.TypePlayerHealthUpdate), 1)
}

func TestAimIsClampedToRange(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.s.Step(Input{Aim: core.Vec2{X: 0, Y: 1000}}, f.t0)
	// default range 10 at scale 15
	assert.InDelta(t, 150, f.s.Reticle().Y, 1e-9)
}

func TestCooldownLimitsFireRate(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.s.Step(Input{Aim: core.Vec2{Y: 50}, Fire: true}, f.t0)
	f.s.Step(Input{Aim: core.Vec2{Y: 50}, Fire: true}, f.t0.Add(10*time.Millisecond))
	assert.Len(t, f.ch.ofType(protocol.TypePlayerShoot), 1)

	f.s.Step(Input{Aim: core.Vec2{Y: 50}, Fire: true}, f.t0.Add(f.s.Cooldown()))
	assert.Len(t, f.ch.ofType(protocol.TypePlayerShoot), 2)
}

func TestLethalHitEliminates(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.player(t, "p2").Health = 5

	f.s.Step(Input{Aim: core.Vec2{X: 100}, Fire: true}, f.t0)
	f.s.Step(Input{}, f.t0.Add(70*time.Millisecond))

	p2 := f.player(t, "p2")
	assert.Equal(t, 0, p2.Health)
	assert.True(t, p2.Eliminated)
	upd := f.ch.ofType(protocol.TypePlayerHealthUpdate)[0].(protocol.PlayerHealthUpdate)
	assert.Equal(t, 0, *upd.Health)
	require.Len(t, f.b.eliminations, 1)
	assert.Equal(t, "p1", f.b.eliminations[0].KillerID)
	require.Len(t, f.obs.eliminated, 1)
	assert.Equal(t, "p2", f.obs.eliminated[0].PlayerID)

	// a relay defeat notice for the same player changes nothing
	f.handle(t, protocol.TypePlayerDefeated, protocol.PlayerDefeated{PlayerID: "p2"}, f.t0)
	assert.Len(t, f.obs.eliminated, 1)
}

func TestMirroredHealth(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{PlayerID: "p1", Health: protocol.Int(40), ShooterID: "p2"}, f.t0)
	assert.Equal(t, 40, f.player(t, "p1").Health)

	f.handle(t, protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{PlayerID: "p1", Health: protocol.Int(250), ShooterID: "p2"}, f.t0)
	assert.Equal(t, core.MaxHealth, f.player(t, "p1").Health)

	// echoes of our own hits are ignored
	f.handle(t, protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{PlayerID: "p2", Health: protocol.Int(1), ShooterID: "p1"}, f.t0)
	assert.Equal(t, core.MaxHealth, f.player(t, "p2").Health)
}

func TestLocalEliminationFreezesControls(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{PlayerID: "p1", Health: protocol.Int(0), ShooterID: "p2"}, f.t0)
	local := f.player(t, "p1")
	require.True(t, local.Eliminated)
	require.Len(t, f.obs.eliminated, 1)
	assert.Equal(t, "p2", f.obs.eliminated[0].KillerID)

	f.s.Step(Input{Move: movement.Input{Right: true}, Aim: core.Vec2{X: 100}, Fire: true}, f.t0)
	f.s.Step(Input{Move: movement.Input{Right: true}, Aim: core.Vec2{X: 100}, Fire: true}, f.t0.Add(500*time.Millisecond))
	assert.Equal(t, core.Vec2{}, local.Position)
	assert.Empty(t, f.ch.ofType(protocol.TypePlayerShoot))

	pos := core.Vec2{X: 5, Y: 5}
	f.handle(t, protocol.TypePlayerRespawned, protocol.PlayerRespawned{PlayerID: "p1", Health: protocol.Int(100), Position: &pos}, f.t0.Add(time.Second))
	assert.False(t, local.Eliminated)
	assert.Equal(t, 100, local.Health)
	assert.Equal(t, pos, local.Position)
	require.Len(t, f.b.respawns, 1)
	require.Len(t, f.obs.respawned, 1)
}

func TestInvalidRespawnRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.handle(t, protocol.TypePlayerDefeated, protocol.PlayerDefeated{PlayerID: "p2"}, f.t0)

	pos := core.Vec2{X: 5, Y: 5}
	f.handle(t, protocol.TypePlayerRespawned, protocol.PlayerRespawned{PlayerID: "p2", Health: protocol.Int(0), Position: &pos}, f.t0)
	assert.True(t, f.player(t, "p2").Eliminated)
	assert.Empty(t, f.b.respawns)
}

func TestRemoteShotIsCosmetic(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerShoot, protocol.NewPlayerShoot("M1", "p2", core.Vec2{X: 100}, core.Vec2{}, 50), f.t0)
	require.Len(t, f.s.Arena().Projectiles(), 1)
	require.Len(t, f.b.shots, 1)
	assert.True(t, f.b.shots[0].Cosmetic)

	f.s.Step(Input{}, f.t0.Add(70*time.Millisecond))
	f.s.Step(Input{}, f.t0.Add(time.Second))
	assert.Equal(t, core.MaxHealth, f.player(t, "p1").Health)
	assert.Empty(t, f.ch.ofType(protocol.TypePlayerHealthUpdate))
	assert.Empty(t, f.s.Arena().Projectiles())
}

func TestRemoteShotWithUnboundedTrajectoryIgnored(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerShoot, protocol.NewPlayerShoot("M1", "p2", core.Vec2{X: -1e308}, core.Vec2{X: 1e308}, 10), f.t0)
	assert.Empty(t, f.s.Arena().Projectiles())
	assert.Empty(t, f.b.shots)

	// an in-bounds shot past the shooter's reach is shortened to it
	f.handle(t, protocol.TypePlayerShoot, protocol.NewPlayerShoot("M1", "p2", core.Vec2{X: 100}, core.Vec2{X: 5000}, 10), f.t0)
	shots := f.s.Arena().Projectiles()
	require.Len(t, shots, 1)
	assert.InDelta(t, 150, shots[0].Distance, 1e-9)

	for i := 1; i <= 60; i++ {
		f.s.Step(Input{}, f.t0.Add(time.Duration(i)*16*time.Millisecond))
	}
	assert.Empty(t, f.s.Arena().Projectiles())
}

func TestNonFiniteCoordinatesIgnoredOverCBOR(t *testing.T) {
	f := newCodecFixture(t, protocol.CBOR{})
	f.start(t)

	f.handle(t, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: "p2", X: protocol.Float(math.NaN()), Y: protocol.Float(0)}, f.t0)
	f.s.Step(Input{}, f.t0.Add(time.Second))
	assert.Equal(t, core.Vec2{X: 100}, f.player(t, "p2").Position)

	f.handle(t, protocol.TypePlayerShoot, protocol.NewPlayerShoot("M1", "p2", core.Vec2{}, core.Vec2{X: math.Inf(1)}, 10), f.t0)
	assert.Empty(t, f.s.Arena().Projectiles())
}

func TestTimerEndsMatch(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypeLeaderboardUpdate, protocol.LeaderboardUpdate{Players: []protocol.LeaderboardRow{
		{PlayerID: "p1", Score: 10, Kills: 1},
		{PlayerID: "p2", Deaths: 1},
	}}, f.t0)
	require.Len(t, f.obs.leaderboard, 1)

	f.handle(t, protocol.TypeMatchTimer, protocol.MatchTimer{TimeLeft: protocol.Int(30)}, f.t0)
	assert.Equal(t, 30, f.s.Machine().TimeLeft())
	f.handle(t, protocol.TypeMatchTimer, protocol.MatchTimer{TimeLeft: protocol.Int(0)}, f.t0)

	assert.True(t, f.s.Machine().Frozen())
	require.Len(t, f.b.ended, 1)
	assert.Equal(t, "p1", f.b.ended[0].WinnerID)
	require.Len(t, f.obs.ended, 1)

	// frozen: nothing moves and a late end notice is ignored
	f.handle(t, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: "p2", X: protocol.Float(1), Y: protocol.Float(1)}, f.t0)
	f.s.Step(Input{Move: movement.Input{Up: true}, Fire: true}, f.t0.Add(time.Second))
	f.handle(t, protocol.TypeMatchEnded, protocol.MatchEnded{}, f.t0)
	assert.Equal(t, core.Vec2{X: 100}, f.player(t, "p2").Position)
	assert.Empty(t, f.ch.ofType(protocol.TypePlayerShoot))
	assert.Len(t, f.b.ended, 1)

	require.NoError(t, f.s.Exit())
	assert.Len(t, f.b.ended, 1)
}

func TestMatchEndedRanksRelayTallies(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypeMatchEnded, protocol.MatchEnded{Result: core.MatchResult{Rankings: []core.RankEntry{
		{PlayerID: "p1", Score: 10, Kills: 1, Deaths: 2},
		{PlayerID: "p2", Score: 20, Kills: 2, Deaths: 1},
	}}}, f.t0)

	require.Len(t, f.b.ended, 1)
	res := f.b.ended[0]
	assert.Equal(t, "p2", res.WinnerID)
	require.Len(t, res.Rankings, 2)
	assert.Equal(t, 1, res.Rankings[0].Rank)
	assert.Equal(t, "p1", res.Rankings[1].PlayerID)
}

func TestMatchEndedDraw(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypeMatchEnded, protocol.MatchEnded{}, f.t0)
	require.Len(t, f.b.ended, 1)
	assert.True(t, f.b.ended[0].Draw)
	assert.Empty(t, f.b.ended[0].WinnerID)
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerJoined, protocol.PlayerJoined{Player: core.PlayerState{ID: "p3", Name: "Cat"}}, f.t0)
	p3 := f.player(t, "p3")
	assert.Equal(t, core.MaxHealth, p3.Health, "missing health means a fresh player")
	assert.False(t, p3.Eliminated)

	f.handle(t, protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerID: "p3"}, f.t0)
	_, ok := f.s.Arena().Player("p3")
	assert.False(t, ok)

	f.handle(t, protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerID: "p1"}, f.t0)
	_, ok = f.s.Arena().Local()
	assert.True(t, ok)

	// a snapshot without p2 drops it
	f.handle(t, protocol.TypeMatchState, protocol.MatchSnapshot{Match: core.MatchState{
		Code:     "M1",
		Settings: testSettings(),
		Status:   core.StatusActive,
		TimeLeft: 40,
		Players:  []core.PlayerState{core.NewPlayerState("p1", "Ann", core.Vec2{}, core.Stats{})},
	}}, f.t0)
	_, ok = f.s.Arena().Player("p2")
	assert.False(t, ok)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handle(t, protocol.TypePlayerMoved, map[string]any{"playerId": "p2", "x": 3}, f.t0)
	f.handle(t, protocol.TypePlayerHealthUpdate, map[string]any{"playerId": "p2"}, f.t0)
	f.handle(t, "somethingElse", map[string]any{"a": 1}, f.t0)
	f.s.Step(Input{}, f.t0.Add(time.Second))

	p2 := f.player(t, "p2")
	assert.Equal(t, core.Vec2{X: 100}, p2.Position)
	assert.Equal(t, core.MaxHealth, p2.Health)
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	f.s.Step(Input{Chat: "glhf"}, f.t0)
	msgs := f.ch.ofType(protocol.TypeSendChatMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "glhf", msgs[0].(protocol.SendChatMessage).Text)

	f.handle(t, protocol.TypeChatMessage, protocol.ChatMessage{SenderID: "p2", Text: "gg", Timestamp: 1700000001000}, f.t0)
	require.Eventually(t, func() bool {
		return len(f.b.chatLog()) == 1 && len(f.obs.chatLog()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, time.UnixMilli(1700000001000), f.b.chatLog()[0].Time)
	assert.Equal(t, "gg", f.obs.chatLog()[0].Text)
}

// blockingSink holds every chat line until released.
type blockingSink struct {
	*mockBackend
	release chan struct{}
}

func (b blockingSink) RecordChat(e *core.ChatEvent) error {
	<-b.release
	return b.mockBackend.RecordChat(e)
}

func TestSlowChatSinkDoesNotStallTick(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	sink := blockingSink{mockBackend: f.b, release: make(chan struct{})}
	f.s.backend = sink

	// lines beyond the queue are dropped while the sink is stuck
	for i := 0; i < chatQueue+2; i++ {
		f.handle(t, protocol.TypeChatMessage, protocol.ChatMessage{SenderID: "p2", Text: "spam"}, f.t0)
	}

	// gameplay messages still apply on the tick goroutine
	f.handle(t, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: "p2", X: protocol.Float(120), Y: protocol.Float(10)}, f.t0)
	f.s.Step(Input{}, f.t0.Add(time.Second))
	assert.Equal(t, core.Vec2{X: 120, Y: 10}, f.player(t, "p2").Position)

	close(sink.release)
	require.Eventually(t, func() bool { return len(f.b.chatLog()) > 0 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, len(f.b.chatLog()), chatQueue+1)
}

func TestExitClosesOpenMatch(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	require.NoError(t, f.s.Exit())
	require.Len(t, f.b.ended, 1)
	assert.True(t, f.s.Machine().Frozen())
	assert.False(t, f.s.disp.HasHandler(protocol.TypePlayerMoved))
}

func TestRunDrainsInboundEachTick(t *testing.T) {
	f := newFixture(t)
	f.s.tick = 5 * time.Millisecond

	frame, err := protocol.JSON{}.Encode(protocol.TypeMatchStarted, protocol.MatchSnapshot{Match: core.MatchState{
		Code:     "M1",
		Settings: testSettings(),
		Players: []core.PlayerState{
			core.NewPlayerState("p1", "Ann", core.Vec2{}, core.Stats{}),
			core.NewPlayerState("p2", "Bob", core.Vec2{X: 100}, core.Stats{}),
		},
	}})
	require.NoError(t, err)
	env, err := protocol.JSON{}.DecodeEnvelope(frame)
	require.NoError(t, err)
	f.ch.in <- env

	ticks := 0
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = f.s.Run(ctx, func(time.Time) Input {
		ticks++
		return Input{Move: movement.Input{Down: true}}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Greater(t, ticks, 0)
	assert.True(t, f.s.Machine().Active())
	assert.Greater(t, f.player(t, "p1").Position.Y, 0.0)
}

func TestRunStopsOnDisconnect(t *testing.T) {
	f := newFixture(t)
	close(f.ch.done)
	err := f.s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestLogContext(t *testing.T) {
	f := newFixture(t)
	attrs := f.s.LogContext()
	require.Len(t, attrs, 3)
	assert.Equal(t, "M1", attrs[0].Value.String())
	assert.Equal(t, "p1", attrs[1].Value.String())
	assert.Equal(t, "lobby", attrs[2].Value.String())

	f.start(t)
	assert.Equal(t, "active", f.s.LogContext()[2].Value.String())
}

func TestSummaryAfterStep(t *testing.T) {
	f := newFixture(t)
	_, ok := f.s.Summary()
	assert.False(t, ok)

	f.start(t)
	f.s.Step(Input{}, f.t0)
	sum, ok := f.s.Summary()
	require.True(t, ok)
	assert.Equal(t, core.StatusActive, sum.Status)
	assert.Equal(t, 2, sum.Players)
	assert.Equal(t, 2, sum.Alive)
	assert.Equal(t, core.MaxHealth, sum.Health)
	assert.Equal(t, f.s.Cooldown(), sum.Cooldown)
}
