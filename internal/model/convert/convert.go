package convert

import (
	"encoding/json"
	"sort"

	"github.com/OCAP2/arena/internal/geo"
	"github.com/OCAP2/arena/internal/model"
	"github.com/OCAP2/arena/pkg/core"
)

// MatchToCore rebuilds the match state stored for m. Players come from the
// roster; the status is ended when an end time was recorded.
func MatchToCore(m model.Match) core.MatchState {
	state := core.MatchState{
		Code:    m.Code,
		Players: make([]core.PlayerState, 0, len(m.Participants)),
		Status:  core.StatusActive,
	}
	state.Settings = matchSettings(m)
	for _, p := range m.Participants {
		state.Players = append(state.Players, ParticipantToCore(p))
	}
	if m.EndTime.Valid {
		state.Status = core.StatusEnded
		result := RankingsToResult(m.WinnerID, m.Draw, m.Rankings)
		state.Result = &result
	}
	return state
}

// matchSettings prefers the settings blob and uses the typed columns when the
// blob is missing, does not decode or carries no map.
func matchSettings(m model.Match) core.MatchSettings {
	if len(m.Settings) > 0 {
		var settings core.MatchSettings
		if err := json.Unmarshal(m.Settings, &settings); err == nil && settings.MapID != "" {
			return settings
		}
	}
	return core.MatchSettings{
		DurationSeconds: m.DurationSeconds,
		MapID:           m.MapID,
		Mode:            core.MatchMode(m.Mode),
		Stake:           m.Stake,
	}
}

// ParticipantToCore converts a roster row to a fresh player state.
func ParticipantToCore(p model.Participant) core.PlayerState {
	pos, _ := geo.Vec(p.SpawnPosition)
	return core.NewPlayerState(p.PlayerID, p.Name, pos, core.Stats{
		Speed:          p.Speed,
		ShootRange:     p.ShootRange,
		ShotsPerMinute: p.ShotsPerMinute,
		HitPower:       p.HitPower,
	})
}

// RankingsToResult converts stored ranking rows back to a result ordered by rank.
func RankingsToResult(winnerID string, draw bool, rows []model.Ranking) core.MatchResult {
	sorted := make([]model.Ranking, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	r := core.MatchResult{
		WinnerID: winnerID,
		Draw:     draw,
		Rankings: make([]core.RankEntry, 0, len(sorted)),
	}
	for _, row := range sorted {
		r.Rankings = append(r.Rankings, core.RankEntry{
			PlayerID: row.PlayerID,
			Name:     row.Name,
			Rank:     row.Rank,
			Score:    row.Score,
			Kills:    row.Kills,
			Deaths:   row.Deaths,
			KDRatio:  row.KDRatio,
			Health:   row.Health,
		})
	}
	return r
}

// ShotToCore converts a stored shot back to a core.ShotEvent.
func ShotToCore(code string, s model.Shot) core.ShotEvent {
	origin, _ := geo.Vec(s.Origin)
	target, _ := geo.Vec(s.Target)
	return core.ShotEvent{
		MatchCode: code,
		ShooterID: s.ShooterID,
		Time:      s.Time,
		Origin:    origin,
		Target:    target,
		Damage:    s.Damage,
		Cosmetic:  s.Cosmetic,
	}
}
