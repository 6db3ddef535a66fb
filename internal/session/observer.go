package session

import (
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

// Observer receives the cues a presentation layer renders. Calls happen on the
// tick goroutine and must not block, except Chat which arrives from the chat
// queue.
type Observer interface {
	MatchStarted(core.MatchState)
	Eliminated(core.EliminationEvent)
	Respawned(core.RespawnEvent)
	MatchEnded(core.MatchResult)
	Leaderboard([]protocol.LeaderboardRow)
	Chat(core.ChatEvent)
}

// NopObserver ignores every cue.
type NopObserver struct{}

func (NopObserver) MatchStarted(core.MatchState)          {}
func (NopObserver) Eliminated(core.EliminationEvent)      {}
func (NopObserver) Respawned(core.RespawnEvent)           {}
func (NopObserver) MatchEnded(core.MatchResult)           {}
func (NopObserver) Leaderboard([]protocol.LeaderboardRow) {}
func (NopObserver) Chat(core.ChatEvent)                   {}

// cues receives lifecycle transitions, records them and forwards them.
type cues struct {
	s *Session
}

func (c cues) Eliminated(e core.EliminationEvent) {
	c.s.interp.Forget(e.PlayerID)
	c.s.metrics.elimination()
	c.s.record("elimination", c.s.backend.RecordElimination(&e))
	c.s.log.Info("Player eliminated", "player", e.PlayerID, "killer", e.KillerID)
	c.s.obs.Eliminated(e)
}

func (c cues) Respawned(e core.RespawnEvent) {
	c.s.interp.Forget(e.PlayerID)
	if e.PlayerID == c.s.arena.LocalID() {
		c.s.move.Reset()
	}
	c.s.record("respawn", c.s.backend.RecordRespawn(&e))
	c.s.log.Info("Player respawned", "player", e.PlayerID)
	c.s.obs.Respawned(e)
}
