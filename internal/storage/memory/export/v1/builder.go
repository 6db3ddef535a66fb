package v1

import (
	"math"
	"sort"
	"time"

	"github.com/OCAP2/arena/pkg/core"
)

// MatchData contains all the data needed to build an export
type MatchData struct {
	Info    *core.MatchInfo
	Players map[string]*PlayerRecord
	Order   []string
	EndTime time.Time

	Shots        []core.ShotEvent
	Hits         []core.HitEvent
	Eliminations []core.EliminationEvent
	Respawns     []core.RespawnEvent
	Chat         []core.ChatEvent
	Result       *core.MatchResult
}

// PlayerRecord groups a player with the tallies observed during the match
type PlayerRecord struct {
	Player       core.PlayerState
	Shots        int
	Hits         int
	DamageDealt  int
	DamageTaken  int
	Eliminations int
	Deaths       int
}

const timeLayout = time.RFC3339Nano

// Build creates an Export from the match data
func Build(data *MatchData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		Players:       make([]Player, 0, len(data.Order)),
		Events:        make([][]any, 0),
	}

	var start time.Time
	if data.Info != nil {
		start = data.Info.StartTime
		export.MatchCode = data.Info.Code
		export.MapID = data.Info.Settings.MapID
		export.Mode = string(data.Info.Settings.Mode)
		export.Stake = data.Info.Settings.Stake
		export.Duration = data.Info.Settings.DurationSeconds
		export.LocalPlayerID = data.Info.LocalID
		export.StartTime = start.UTC().Format(timeLayout)
	}
	if !data.EndTime.IsZero() {
		export.EndTime = data.EndTime.UTC().Format(timeLayout)
	}

	for _, id := range data.Order {
		rec, ok := data.Players[id]
		if !ok {
			continue
		}
		export.Players = append(export.Players, Player{
			ID:           rec.Player.ID,
			Name:         rec.Player.Name,
			Spawn:        [2]float64{rec.Player.Position.X, rec.Player.Position.Y},
			Shots:        rec.Shots,
			Hits:         rec.Hits,
			DamageDealt:  rec.DamageDealt,
			DamageTaken:  rec.DamageTaken,
			Eliminations: rec.Eliminations,
			Deaths:       rec.Deaths,
		})
	}

	type timed struct {
		at  time.Time
		row []any
	}
	events := make([]timed, 0, len(data.Shots)+len(data.Hits)+len(data.Eliminations)+len(data.Respawns)+len(data.Chat))

	// Format: [ms, "shot", shooterId, [ox, oy], [tx, ty], damage, cosmetic]
	for _, e := range data.Shots {
		events = append(events, timed{e.Time, []any{
			offsetMs(start, e.Time), "shot", e.ShooterID,
			vec(e.Origin), vec(e.Target), e.Damage, boolToInt(e.Cosmetic),
		}})
	}
	// Format: [ms, "hit", victimId, shooterId, damage, healthAfter, [x, y]]
	for _, e := range data.Hits {
		events = append(events, timed{e.Time, []any{
			offsetMs(start, e.Time), "hit", e.VictimID, e.ShooterID,
			e.Damage, e.Health, vec(e.Position),
		}})
	}
	// Format: [ms, "eliminated", playerId, killerId, [x, y]]
	for _, e := range data.Eliminations {
		events = append(events, timed{e.Time, []any{
			offsetMs(start, e.Time), "eliminated", e.PlayerID, e.KillerID, vec(e.Position),
		}})
	}
	// Format: [ms, "respawned", playerId, health, [x, y]]
	for _, e := range data.Respawns {
		events = append(events, timed{e.Time, []any{
			offsetMs(start, e.Time), "respawned", e.PlayerID, e.Health, vec(e.Position),
		}})
	}
	// Format: [ms, "chat", senderId, text]
	for _, e := range data.Chat {
		events = append(events, timed{e.Time, []any{
			offsetMs(start, e.Time), "chat", e.SenderID, e.Text,
		}})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
	for _, e := range events {
		export.Events = append(export.Events, e.row)
	}

	if data.Result != nil {
		res := &Result{
			WinnerID: data.Result.WinnerID,
			Draw:     data.Result.Draw,
			Rankings: make([][]any, 0, len(data.Result.Rankings)),
		}
		for _, r := range data.Result.Rankings {
			res.Rankings = append(res.Rankings, []any{
				r.Rank, r.PlayerID, r.Name, r.Score, r.Kills, r.Deaths, round2(r.KDRatio), r.Health,
			})
		}
		export.Result = res
	}

	return export
}

func offsetMs(start, at time.Time) int64 {
	if start.IsZero() || at.Before(start) {
		return 0
	}
	return at.Sub(start).Milliseconds()
}

func vec(v core.Vec2) []float64 {
	return []float64{round2(v.X), round2(v.Y)}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
