package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/arena/internal/geo"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCoreToMatch(t *testing.T) {
	info := core.MatchInfo{
		Code:      "M1",
		Settings:  core.MatchSettings{DurationSeconds: 120, MapID: "dunes", Mode: core.ModeRated, Stake: 5},
		LocalID:   "p1",
		StartTime: t0,
		Players: []core.PlayerState{
			core.NewPlayerState("p1", "Ann", core.Vec2{X: 10, Y: 20}, core.Stats{HitPower: 12}),
			core.NewPlayerState("p2", "Bob", core.Vec2{X: 30, Y: 40}, core.Stats{}),
		},
	}

	m := CoreToMatch(info)

	assert.Equal(t, "M1", m.Code)
	assert.Equal(t, "dunes", m.MapID)
	assert.Equal(t, "rated", m.Mode)
	assert.Equal(t, 5.0, m.Stake)
	assert.Equal(t, "p1", m.LocalPlayerID)
	assert.Equal(t, t0, m.StartTime)

	var settings core.MatchSettings
	require.NoError(t, json.Unmarshal(m.Settings, &settings))
	assert.Equal(t, info.Settings, settings)

	require.Len(t, m.Participants, 2)
	assert.Equal(t, 12, m.Participants[0].HitPower)
	assert.Equal(t, 100.0, m.Participants[1].Speed, "absent stats are stored with defaults")
	pos, ok := geo.Vec(m.Participants[1].SpawnPosition)
	require.True(t, ok)
	assert.Equal(t, core.Vec2{X: 30, Y: 40}, pos)
}

func TestCoreToShot(t *testing.T) {
	s := CoreToShot(core.ShotEvent{
		MatchCode: "M1",
		ShooterID: "p1",
		Time:      t0,
		Origin:    core.Vec2{X: 0, Y: 0},
		Target:    core.Vec2{X: 60, Y: 80},
		Damage:    10,
		Cosmetic:  true,
	})

	assert.Equal(t, "p1", s.ShooterID)
	assert.Equal(t, 100.0, s.Distance)
	assert.True(t, s.Cosmetic)

	start, end, err := geo.PathEnds(s.Path)
	require.NoError(t, err)
	assert.Equal(t, core.Vec2{}, start)
	assert.Equal(t, core.Vec2{X: 60, Y: 80}, end)
}

func TestCoreToEvents(t *testing.T) {
	h := CoreToHit(core.HitEvent{ShooterID: "p1", VictimID: "p2", Damage: 12, Health: 88, Time: t0, Position: core.Vec2{X: 5, Y: 5}})
	assert.Equal(t, "p2", h.VictimID)
	assert.Equal(t, 88, h.HealthAfter)

	e := CoreToElimination(core.EliminationEvent{PlayerID: "p2", Name: "Bob", KillerID: "p1", Time: t0})
	assert.Equal(t, "p1", e.KillerID)
	assert.Equal(t, "Bob", e.Name)

	r := CoreToRespawn(core.RespawnEvent{PlayerID: "p2", Health: 100, Position: core.Vec2{X: 1, Y: 2}, Time: t0})
	pos, ok := geo.Vec(r.Position)
	require.True(t, ok)
	assert.Equal(t, core.Vec2{X: 1, Y: 2}, pos)

	c := CoreToChatMessage(core.ChatEvent{SenderID: "p1", Text: "gg", Time: t0})
	assert.Equal(t, "gg", c.Text)
}

func TestCoreToRankings(t *testing.T) {
	rows := CoreToRankings(7, core.MatchResult{
		WinnerID: "p1",
		Rankings: []core.RankEntry{
			{PlayerID: "p1", Rank: 1, Score: 20, Kills: 2},
			{PlayerID: "p2", Rank: 2, Score: 10, Kills: 1, Deaths: 2, KDRatio: 0.5},
		},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, uint(7), rows[1].MatchID)
	assert.Equal(t, 0.5, rows[1].KDRatio)
}
