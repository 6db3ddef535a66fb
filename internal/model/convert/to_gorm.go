// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/arena/internal/geo"
	"github.com/OCAP2/arena/internal/model"
	"github.com/OCAP2/arena/pkg/core"
	"gorm.io/datatypes"
)

// settingsToJSON keeps the relay's settings object verbatim for later audit.
func settingsToJSON(s core.MatchSettings) datatypes.JSON {
	data, err := json.Marshal(s)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToMatch converts the match start info to a GORM model.Match.
// Participants are included so a single Create stores the roster.
func CoreToMatch(info core.MatchInfo) model.Match {
	m := model.Match{
		Code:            info.Code,
		MapID:           info.Settings.MapID,
		Mode:            string(info.Settings.Mode),
		Stake:           info.Settings.Stake,
		DurationSeconds: info.Settings.DurationSeconds,
		LocalPlayerID:   info.LocalID,
		StartTime:       info.StartTime,
		Settings:        settingsToJSON(info.Settings),
		Participants:    make([]model.Participant, 0, len(info.Players)),
	}
	for _, p := range info.Players {
		m.Participants = append(m.Participants, CoreToParticipant(p))
	}
	return m
}

// CoreToParticipant converts a player to a GORM model.Participant.
func CoreToParticipant(p core.PlayerState) model.Participant {
	stats := p.Stats.WithDefaults()
	return model.Participant{
		PlayerID:       p.ID,
		Name:           p.Name,
		Speed:          stats.Speed,
		ShootRange:     stats.ShootRange,
		ShotsPerMinute: stats.ShotsPerMinute,
		HitPower:       stats.HitPower,
		SpawnPosition:  geo.Point(p.Position),
	}
}

// CoreToShot converts a core.ShotEvent to a GORM model.Shot.
func CoreToShot(e core.ShotEvent) model.Shot {
	path := geo.ShotPath(e.Origin, e.Target)
	return model.Shot{
		Time:      e.Time,
		ShooterID: e.ShooterID,
		Origin:    geo.Point(e.Origin),
		Target:    geo.Point(e.Target),
		Path:      path.AsText(),
		Distance:  path.Length(),
		Damage:    e.Damage,
		Cosmetic:  e.Cosmetic,
	}
}

// CoreToHit converts a core.HitEvent to a GORM model.Hit.
func CoreToHit(e core.HitEvent) model.Hit {
	return model.Hit{
		Time:        e.Time,
		ShooterID:   e.ShooterID,
		VictimID:    e.VictimID,
		Damage:      e.Damage,
		HealthAfter: e.Health,
		Position:    geo.Point(e.Position),
	}
}

// CoreToElimination converts a core.EliminationEvent to a GORM model.Elimination.
func CoreToElimination(e core.EliminationEvent) model.Elimination {
	return model.Elimination{
		Time:     e.Time,
		PlayerID: e.PlayerID,
		Name:     e.Name,
		KillerID: e.KillerID,
		Position: geo.Point(e.Position),
	}
}

// CoreToRespawn converts a core.RespawnEvent to a GORM model.Respawn.
func CoreToRespawn(e core.RespawnEvent) model.Respawn {
	return model.Respawn{
		Time:     e.Time,
		PlayerID: e.PlayerID,
		Health:   e.Health,
		Position: geo.Point(e.Position),
	}
}

// CoreToChatMessage converts a core.ChatEvent to a GORM model.ChatMessage.
func CoreToChatMessage(e core.ChatEvent) model.ChatMessage {
	return model.ChatMessage{
		Time:     e.Time,
		SenderID: e.SenderID,
		Text:     e.Text,
	}
}

// CoreToRankings converts the final standings to GORM rows for matchID.
func CoreToRankings(matchID uint, r core.MatchResult) []model.Ranking {
	rows := make([]model.Ranking, 0, len(r.Rankings))
	for _, e := range r.Rankings {
		rows = append(rows, model.Ranking{
			MatchID:  matchID,
			PlayerID: e.PlayerID,
			Name:     e.Name,
			Rank:     e.Rank,
			Score:    e.Score,
			Kills:    e.Kills,
			Deaths:   e.Deaths,
			KDRatio:  e.KDRatio,
			Health:   e.Health,
		})
	}
	return rows
}
