package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/arena/internal/match"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

const tickInterval = 10 * time.Millisecond

// Commands posted to a room's inbox.
type joinCmd struct {
	peer *peer
	msg  protocol.JoinMatch
}

type message struct {
	peer *peer
	env  protocol.Envelope
}

type leave struct {
	peer *peer
}

type member struct {
	state core.PlayerState
	peer  *peer // nil while disconnected
	slot  int
	// leftAt is when the peer dropped; zero while connected.
	leftAt time.Time
}

// Room runs one match on a single goroutine. All state is owned by Run.
type Room struct {
	code    string
	cfg     Config
	log     *slog.Logger
	inbox   chan any
	quit    chan struct{}
	stop    sync.Once
	onEmpty func(code string)
	count   atomic.Int32

	machine   *match.Machine
	players   map[string]*member
	order     []string
	slots     int
	respawns  map[string]time.Time
	nextTimer time.Time
}

func newRoom(code string, cfg Config, log *slog.Logger) *Room {
	return &Room{
		code:     code,
		cfg:      cfg,
		log:      log.With("match", code),
		inbox:    make(chan any, 256),
		quit:     make(chan struct{}),
		machine:  match.NewMachine(code),
		players:  make(map[string]*member),
		respawns: make(map[string]time.Time),
	}
}

// post hands a command to the room; it is dropped once the room stopped.
func (r *Room) post(cmd any) {
	select {
	case r.inbox <- cmd:
	case <-r.quit:
	}
}

// Stop ends Run.
func (r *Room) Stop() {
	r.stop.Do(func() { close(r.quit) })
}

// NumPlayers is safe to call from any goroutine.
func (r *Room) NumPlayers() int {
	return int(r.count.Load())
}

// Run processes commands and the match clock until Stop.
func (r *Room) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.inbox:
			r.handle(cmd, time.Now())
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

func (r *Room) handle(cmd any, now time.Time) {
	switch c := cmd.(type) {
	case joinCmd:
		r.handleJoin(c.peer, c.msg, now)
	case message:
		r.handleMessage(c.peer, c.env, now)
	case leave:
		r.handleLeave(c.peer, now)
	}
}

func (r *Room) handleJoin(p *peer, msg protocol.JoinMatch, now time.Time) {
	if m, ok := r.players[msg.PlayerID]; ok {
		// reconnect: the new socket takes over and gets the full state
		if m.peer != nil && m.peer != p {
			m.peer.close()
		}
		m.peer = p
		m.leftAt = time.Time{}
		r.sendTo(p, protocol.TypeMatchState, protocol.MatchSnapshot{Match: r.state()})
		r.log.Info("Player rejoined", "player", msg.PlayerID, "score", m.state.Score)
		return
	}
	if r.machine.Frozen() {
		r.sendTo(p, protocol.TypeMatchState, protocol.MatchSnapshot{Match: r.state()})
		return
	}

	var stats core.Stats
	if msg.Stats != nil {
		stats = *msg.Stats
	}
	name := msg.Name
	if name == "" {
		name = msg.PlayerID
	}
	m := &member{
		state: core.NewPlayerState(msg.PlayerID, name, spawnPoint(r.slots), stats),
		peer:  p,
		slot:  r.slots,
	}
	r.slots++
	r.players[msg.PlayerID] = m
	r.order = append(r.order, msg.PlayerID)
	r.count.Store(int32(len(r.players)))
	r.log.Info("Player joined", "player", msg.PlayerID, "players", len(r.players))

	r.sendTo(p, protocol.TypeMatchState, protocol.MatchSnapshot{Match: r.state()})
	r.broadcastExcept(msg.PlayerID, protocol.TypePlayerJoined, protocol.PlayerJoined{Player: m.state})

	if r.machine.Status() == core.StatusLobby && len(r.players) >= r.cfg.MinPlayers {
		r.start(now)
	}
}

func (r *Room) start(now time.Time) {
	settings := core.MatchSettings{
		DurationSeconds: int(r.cfg.Duration / time.Second),
		MapID:           r.cfg.MapID,
		Mode:            core.ModeFriendly,
	}
	if err := r.machine.Start(settings, len(r.players)); err != nil {
		r.log.Error("Failed to start match", "error", err)
		return
	}
	r.nextTimer = now.Add(r.cfg.TimerInterval)
	r.log.Info("Match started", "players", len(r.players), "duration", settings.DurationSeconds)
	r.broadcast(protocol.TypeMatchStarted, protocol.MatchSnapshot{Match: r.state()})
}

// handleLeave drops a peer. In the lobby the player is gone at once; once the
// match runs the player keeps its tally and slot so a reconnect can resume it,
// until RejoinGrace expires.
func (r *Room) handleLeave(p *peer, now time.Time) {
	m, ok := r.players[p.id]
	if !ok || m.peer != p {
		return
	}
	if r.machine.Status() == core.StatusLobby {
		r.drop(p.id)
		return
	}
	m.peer = nil
	m.leftAt = now
	m.state.Moving = false
	r.log.Info("Player disconnected", "player", p.id, "grace", r.cfg.RejoinGrace)
	r.checkEmpty()
}

// drop removes a player for good and tells the others.
func (r *Room) drop(id string) {
	r.remove(id)
	r.log.Info("Player left", "player", id, "players", len(r.players))
	r.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerID: id})
	r.checkEmpty()
}

// checkEmpty releases the room once nobody is left in it. Outside a running
// match a room whose members all disconnected is released as well.
func (r *Room) checkEmpty() {
	if len(r.players) > 0 && r.machine.Active() {
		return
	}
	for _, m := range r.players {
		if m.peer != nil {
			return
		}
	}
	if r.onEmpty != nil {
		r.onEmpty(r.code)
	}
}

func (r *Room) remove(id string) {
	delete(r.players, id)
	delete(r.respawns, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.count.Store(int32(len(r.players)))
}

func (r *Room) handleMessage(p *peer, env protocol.Envelope, now time.Time) {
	m, ok := r.players[p.id]
	if !ok || m.peer != p {
		return
	}

	switch env.Type {
	case protocol.TypePlayerMove:
		msg, err := protocol.Decode[protocol.PlayerMove](p.codec, env)
		if err != nil {
			r.log.Debug("Invalid move", "player", p.id, "error", err)
			return
		}
		if r.machine.Frozen() || m.state.Eliminated {
			return
		}
		m.state.Position = core.Vec2{X: *msg.X, Y: *msg.Y}
		r.broadcastExcept(p.id, protocol.TypePlayerMoved, protocol.PlayerMoved{PlayerID: p.id, X: msg.X, Y: msg.Y})

	case protocol.TypePlayerShoot:
		msg, err := protocol.Decode[protocol.PlayerShoot](p.codec, env)
		if err != nil {
			r.log.Debug("Invalid shot", "player", p.id, "error", err)
			return
		}
		if !r.machine.Active() || m.state.Eliminated {
			return
		}
		msg.PlayerID = p.id
		r.broadcastExcept(p.id, protocol.TypePlayerShoot, msg)

	case protocol.TypePlayerHealthUpdate:
		msg, err := protocol.Decode[protocol.PlayerHealthUpdate](p.codec, env)
		if err != nil {
			r.log.Debug("Invalid health update", "player", p.id, "error", err)
			return
		}
		r.applyHealth(p.id, msg, now)

	case protocol.TypeSendChatMessage:
		msg, err := protocol.Decode[protocol.SendChatMessage](p.codec, env)
		if err != nil {
			return
		}
		if !p.chat.AllowN(now, 1) {
			r.log.Debug("Chat rate limited", "player", p.id)
			return
		}
		r.broadcast(protocol.TypeChatMessage, protocol.ChatMessage{
			SenderID:  p.id,
			Text:      msg.Text,
			Timestamp: now.UnixMilli(),
		})

	default:
		r.log.Debug("Ignoring message", "type", env.Type, "player", p.id)
	}
}

// applyHealth records a hit reported by the shooter's client and tallies the
// elimination when it is lethal.
func (r *Room) applyHealth(senderID string, msg protocol.PlayerHealthUpdate, now time.Time) {
	if !r.machine.Active() {
		return
	}
	victim, ok := r.players[msg.PlayerID]
	if !ok || victim.state.Eliminated {
		return
	}
	victim.state.Health = core.ClampHealth(*msg.Health)
	msg.ShooterID = senderID
	r.broadcastExcept(senderID, protocol.TypePlayerHealthUpdate, msg)

	if victim.state.Health > 0 {
		return
	}
	victim.state.Eliminated = true
	victim.state.Moving = false
	victim.state.Deaths++
	if shooter, ok := r.players[senderID]; ok && senderID != msg.PlayerID {
		shooter.state.Kills++
		shooter.state.Score += PointsPerKill
	}
	r.respawns[msg.PlayerID] = now.Add(r.cfg.RespawnDelay)

	r.broadcast(protocol.TypePlayerDefeated, protocol.PlayerDefeated{PlayerID: msg.PlayerID, Name: victim.state.Name})
	r.broadcast(protocol.TypeLeaderboardUpdate, protocol.LeaderboardUpdate{Players: r.leaderboard()})
}

func (r *Room) tick(now time.Time) {
	if !r.machine.Active() {
		return
	}
	for _, id := range append([]string(nil), r.order...) {
		m := r.players[id]
		if m.peer == nil && !m.leftAt.IsZero() && now.Sub(m.leftAt) >= r.cfg.RejoinGrace {
			r.drop(id)
		}
	}
	for id, at := range r.respawns {
		if now.Before(at) {
			continue
		}
		delete(r.respawns, id)
		r.respawn(id)
	}

	for r.machine.Active() && !now.Before(r.nextTimer) {
		r.nextTimer = r.nextTimer.Add(r.cfg.TimerInterval)
		left := r.machine.TimeLeft() - 1
		res, ended := r.machine.Timer(left, r.snapshot())
		r.broadcast(protocol.TypeMatchTimer, protocol.MatchTimer{TimeLeft: protocol.Int(r.machine.TimeLeft())})
		if ended {
			r.respawns = make(map[string]time.Time)
			r.log.Info("Match ended", "winner", res.WinnerID, "draw", res.Draw)
			r.broadcast(protocol.TypeMatchEnded, protocol.MatchEnded{Result: res})
		}
	}
}

func (r *Room) respawn(id string) {
	m, ok := r.players[id]
	if !ok {
		return
	}
	pos := spawnPoint(m.slot)
	m.state.Health = core.MaxHealth
	m.state.Eliminated = false
	m.state.Position = pos
	r.broadcast(protocol.TypePlayerRespawned, protocol.PlayerRespawned{
		PlayerID: id,
		Name:     m.state.Name,
		Health:   protocol.Int(core.MaxHealth),
		Position: &pos,
	})
}

func (r *Room) snapshot() []core.PlayerState {
	out := make([]core.PlayerState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].state)
	}
	return out
}

func (r *Room) state() core.MatchState {
	return r.machine.State(r.snapshot())
}

func (r *Room) leaderboard() []protocol.LeaderboardRow {
	ranked := match.Rank(r.snapshot())
	rows := make([]protocol.LeaderboardRow, 0, len(ranked.Rankings))
	for _, e := range ranked.Rankings {
		rows = append(rows, protocol.LeaderboardRow{
			PlayerID: e.PlayerID,
			Name:     e.Name,
			Score:    e.Score,
			Kills:    e.Kills,
			Deaths:   e.Deaths,
		})
	}
	return rows
}

func (r *Room) sendTo(p *peer, msgType string, payload any) {
	frame, err := p.codec.Encode(msgType, payload)
	if err != nil {
		r.log.Error("Failed to encode", "type", msgType, "error", err)
		return
	}
	p.send(frame)
}

func (r *Room) broadcast(msgType string, payload any) {
	r.broadcastExcept("", msgType, payload)
}

// broadcastExcept encodes once per codec in use and skips the given player.
func (r *Room) broadcastExcept(skip, msgType string, payload any) {
	frames := make(map[string][]byte, 2)
	for _, id := range r.order {
		m := r.players[id]
		if id == skip || m.peer == nil {
			continue
		}
		name := m.peer.codec.Name()
		frame, ok := frames[name]
		if !ok {
			var err error
			frame, err = m.peer.codec.Encode(msgType, payload)
			if err != nil {
				r.log.Error("Failed to encode", "type", msgType, "error", err)
				return
			}
			frames[name] = frame
		}
		m.peer.send(frame)
	}
}

// spawnPoint spreads players on a 4x3 grid inside the default arena.
func spawnPoint(slot int) core.Vec2 {
	slot %= 12
	return core.Vec2{
		X: 200 + float64(slot%4)*400,
		Y: 200 + float64(slot/4)*400,
	}
}
