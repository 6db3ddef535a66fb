package session

import (
	"time"

	"github.com/OCAP2/arena/internal/dispatcher"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

var handledTypes = []string{
	protocol.TypeMatchState,
	protocol.TypeMatchStarted,
	protocol.TypeMatchTimer,
	protocol.TypeMatchEnded,
	protocol.TypePlayerJoined,
	protocol.TypePlayerLeft,
	protocol.TypePlayerMoved,
	protocol.TypePlayerShoot,
	protocol.TypePlayerHealthUpdate,
	protocol.TypePlayerDefeated,
	protocol.TypePlayerRespawned,
	protocol.TypeLeaderboardUpdate,
	protocol.TypeChatMessage,
}

// chatQueue bounds the chat lines waiting for the sink.
const chatQueue = 64

// RegisterHandlers registers every relay message handler with the dispatcher.
// Handlers that touch the arena run synchronously on the tick goroutine. Chat
// only reaches the sink and the observer, so it is queued and handled on its
// own goroutine.
func (s *Session) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Match lifecycle
	d.Register(protocol.TypeMatchState, s.handleMatchState, dispatcher.Logged())
	d.Register(protocol.TypeMatchStarted, s.handleMatchStarted, dispatcher.Logged())
	d.Register(protocol.TypeMatchTimer, s.handleMatchTimer, dispatcher.Logged())
	d.Register(protocol.TypeMatchEnded, s.handleMatchEnded, dispatcher.Logged())

	// Membership
	d.Register(protocol.TypePlayerJoined, s.handlePlayerJoined, dispatcher.Logged())
	d.Register(protocol.TypePlayerLeft, s.handlePlayerLeft, dispatcher.Logged())

	// Gameplay
	d.Register(protocol.TypePlayerMoved, s.handlePlayerMoved, dispatcher.Logged())
	d.Register(protocol.TypePlayerShoot, s.handlePlayerShoot, dispatcher.Logged())
	d.Register(protocol.TypePlayerHealthUpdate, s.handleHealthUpdate, dispatcher.Logged())
	d.Register(protocol.TypePlayerDefeated, s.handlePlayerDefeated, dispatcher.Logged())
	d.Register(protocol.TypePlayerRespawned, s.handlePlayerRespawned, dispatcher.Logged())

	// Social
	d.Register(protocol.TypeLeaderboardUpdate, s.handleLeaderboard, dispatcher.Logged())
	d.Register(protocol.TypeChatMessage, s.handleChat, dispatcher.Buffered(chatQueue), dispatcher.Logged())
}

func decode[T any](s *Session, e dispatcher.Event) (T, error) {
	return protocol.Decode[T](s.codec, protocol.Envelope{Type: e.Type, Payload: e.Payload})
}

func (s *Session) handleMatchState(e dispatcher.Event) error {
	snap, err := decode[protocol.MatchSnapshot](s, e)
	if err != nil {
		return err
	}
	return s.syncMatch(snap.Match, e.Timestamp)
}

func (s *Session) handleMatchStarted(e dispatcher.Event) error {
	snap, err := decode[protocol.MatchSnapshot](s, e)
	if err != nil {
		return err
	}
	st := snap.Match
	if st.Status == "" || st.Status == core.StatusLobby {
		st.Status = core.StatusActive
	}
	return s.syncMatch(st, e.Timestamp)
}

// syncMatch adopts a relay snapshot: roster first, then the lifecycle phase.
func (s *Session) syncMatch(st core.MatchState, now time.Time) error {
	if s.machine.Frozen() {
		return nil
	}
	wasActive := s.machine.Active()

	s.applyRoster(st.Players, now)
	st.Players = s.arena.Snapshot()
	if err := s.machine.Sync(st); err != nil {
		return err
	}
	s.setStatus()

	if !wasActive && s.machine.Active() {
		s.begin(now)
	}
	if res, ok := s.machine.Result(); ok {
		s.finish(res)
	}
	return nil
}

func (s *Session) handleMatchTimer(e dispatcher.Event) error {
	t, err := decode[protocol.MatchTimer](s, e)
	if err != nil {
		return err
	}
	if res, ended := s.machine.Timer(*t.TimeLeft, s.arena.Snapshot()); ended {
		s.setStatus()
		s.finish(res)
	}
	return nil
}

// handleMatchEnded takes the relay's tallies and ranks locally, so every client
// applies the same ordering rules to the same numbers.
func (s *Session) handleMatchEnded(e dispatcher.Event) error {
	m, err := decode[protocol.MatchEnded](s, e)
	if err != nil {
		return err
	}
	if s.machine.Frozen() {
		return nil
	}
	for _, r := range m.Result.Rankings {
		s.applyTally(r.PlayerID, r.Score, r.Kills, r.Deaths)
	}
	if res, ended := s.machine.End(s.arena.Snapshot()); ended {
		s.setStatus()
		s.finish(res)
	}
	return nil
}

func (s *Session) begin(now time.Time) {
	s.started = true
	players := s.arena.Snapshot()
	s.record("start", s.backend.StartMatch(&core.MatchInfo{
		Code:      s.deps.MatchCode,
		Settings:  s.machine.Settings(),
		LocalID:   s.arena.LocalID(),
		StartTime: now,
		Players:   players,
	}))
	s.log.Info("Match started", "players", len(players), "duration", s.machine.Settings().DurationSeconds)
	s.obs.MatchStarted(s.machine.State(players))
}

func (s *Session) finish(res core.MatchResult) {
	if s.started {
		s.record("end", s.backend.EndMatch(res))
	}
	s.log.Info("Match ended", "winner", res.WinnerID, "draw", res.Draw)
	s.obs.MatchEnded(res)
}

func (s *Session) handlePlayerJoined(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerJoined](s, e)
	if err != nil {
		return err
	}
	if s.machine.Frozen() {
		return nil
	}
	s.upsert(m.Player, e.Timestamp)
	s.log.Debug("Player joined", "player", m.Player.ID)
	return nil
}

func (s *Session) handlePlayerLeft(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerLeft](s, e)
	if err != nil {
		return err
	}
	if s.machine.Frozen() || m.PlayerID == s.arena.LocalID() {
		return nil
	}
	s.forget(m.PlayerID)
	s.log.Debug("Player left", "player", m.PlayerID)
	return nil
}

func (s *Session) handlePlayerMoved(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerMoved](s, e)
	if err != nil {
		return err
	}
	if s.machine.Frozen() {
		return nil
	}
	if !s.interp.Report(s.arena, m.PlayerID, m.Position(), e.Timestamp) && m.PlayerID != s.arena.LocalID() {
		s.log.Debug("Move for unknown player", "player", m.PlayerID)
	}
	return nil
}

// handlePlayerShoot mirrors a peer's shot. Only the shooter resolves its hits.
func (s *Session) handlePlayerShoot(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerShoot](s, e)
	if err != nil {
		return err
	}
	if !s.machine.Active() || m.PlayerID == s.arena.LocalID() {
		return nil
	}
	p, err := s.shots.SpawnRemote(s.arena, m.PlayerID, m.Start(), m.Target(), *m.Damage, e.Timestamp)
	if err != nil {
		return err
	}
	s.record("shot", s.backend.RecordShot(&core.ShotEvent{
		MatchCode: s.deps.MatchCode,
		ShooterID: p.ShooterID,
		Time:      e.Timestamp,
		Origin:    p.Origin,
		Target:    p.Target,
		Damage:    p.Damage,
		Cosmetic:  true,
	}))
	return nil
}

func (s *Session) handleHealthUpdate(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerHealthUpdate](s, e)
	if err != nil {
		return err
	}
	// our own hits were applied when they landed
	if !s.machine.Active() || m.ShooterID == s.arena.LocalID() {
		return nil
	}
	_, err = s.health.Mirror(s.arena, m.PlayerID, *m.Health, m.ShooterID, e.Timestamp)
	return err
}

func (s *Session) handlePlayerDefeated(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerDefeated](s, e)
	if err != nil {
		return err
	}
	if !s.machine.Active() {
		return nil
	}
	_, err = s.health.Eliminate(s.arena, m.PlayerID, e.Timestamp)
	return err
}

func (s *Session) handlePlayerRespawned(e dispatcher.Event) error {
	m, err := decode[protocol.PlayerRespawned](s, e)
	if err != nil {
		return err
	}
	if !s.machine.Active() {
		return nil
	}
	_, err = s.health.Respawn(s.arena, m.PlayerID, *m.Health, *m.Position, e.Timestamp)
	return err
}

func (s *Session) handleLeaderboard(e dispatcher.Event) error {
	m, err := decode[protocol.LeaderboardUpdate](s, e)
	if err != nil {
		return err
	}
	if s.machine.Frozen() {
		return nil
	}
	for _, r := range m.Players {
		s.applyTally(r.PlayerID, r.Score, r.Kills, r.Deaths)
	}
	s.obs.Leaderboard(m.Players)
	return nil
}

func (s *Session) handleChat(e dispatcher.Event) error {
	m, err := decode[protocol.ChatMessage](s, e)
	if err != nil {
		return err
	}
	at := e.Timestamp
	if m.Timestamp > 0 {
		at = time.UnixMilli(m.Timestamp)
	}
	ev := core.ChatEvent{MatchCode: s.deps.MatchCode, SenderID: m.SenderID, Text: m.Text, Time: at}
	s.record("chat", s.backend.RecordChat(&ev))
	s.obs.Chat(ev)
	return nil
}

// applyRoster makes the arena match the relay's membership. The local player
// always stays.
func (s *Session) applyRoster(players []core.PlayerState, now time.Time) {
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		seen[p.ID] = true
		s.upsert(p, now)
	}
	for _, p := range s.arena.Players() {
		if !seen[p.ID] && p.ID != s.arena.LocalID() {
			s.forget(p.ID)
		}
	}
}

// upsert adds or refreshes a player from relay data. A zero health on a player
// not marked eliminated means the relay left it out. The local player's
// position and stats are never taken from the relay.
func (s *Session) upsert(p core.PlayerState, now time.Time) {
	reported := p.Health > 0 || p.Eliminated
	p.Health = core.ClampHealth(p.Health)
	p.Eliminated = reported && p.Health == 0

	existing, ok := s.arena.Player(p.ID)
	if !ok {
		if !reported {
			p.Health = core.MaxHealth
		}
		p.Moving = false
		s.arena.AddPlayer(p)
		return
	}

	if p.Name != "" {
		existing.Name = p.Name
	}
	existing.Score, existing.Kills, existing.Deaths = p.Score, p.Kills, p.Deaths
	if reported {
		existing.Health, existing.Eliminated = p.Health, p.Eliminated
	}
	if p.ID == s.arena.LocalID() {
		return
	}
	existing.Stats = p.Stats
	if existing.Position != p.Position {
		s.interp.Report(s.arena, p.ID, p.Position, now)
	}
}

func (s *Session) applyTally(id string, score, kills, deaths int) {
	if p, ok := s.arena.Player(id); ok {
		p.Score, p.Kills, p.Deaths = score, kills, deaths
	}
}

func (s *Session) forget(id string) {
	s.arena.RemovePlayer(id)
	s.interp.Forget(id)
	s.shots.Forget(id)
}
