package main

import (
	"context"
	"log/slog"

	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

// logObserver stands in for the presentation layer: it logs the cues and
// stops the run once the match has a result.
type logObserver struct {
	log    *slog.Logger
	cancel context.CancelFunc
}

func newLogObserver(log *slog.Logger, cancel context.CancelFunc) *logObserver {
	return &logObserver{log: log, cancel: cancel}
}

func (o *logObserver) MatchStarted(st core.MatchState) {
	o.log.Info("Match started",
		"map", st.Settings.MapID,
		"duration", st.Settings.DurationSeconds,
		"players", len(st.Players))
}

func (o *logObserver) Eliminated(e core.EliminationEvent) {
	o.log.Info("Player eliminated", "player", e.PlayerID, "by", e.KillerID)
}

func (o *logObserver) Respawned(e core.RespawnEvent) {
	o.log.Info("Player respawned", "player", e.PlayerID, "health", e.Health)
}

func (o *logObserver) Leaderboard(rows []protocol.LeaderboardRow) {
	for i, r := range rows {
		o.log.Debug("Leaderboard", "rank", i+1, "player", r.PlayerID, "score", r.Score, "kills", r.Kills, "deaths", r.Deaths)
	}
}

func (o *logObserver) Chat(e core.ChatEvent) {
	o.log.Info("Chat", "from", e.SenderID, "text", e.Text)
}

func (o *logObserver) MatchEnded(res core.MatchResult) {
	o.log.Info("Match ended", "winner", res.WinnerID, "draw", res.Draw)
	if o.cancel != nil {
		o.cancel()
	}
}
