package v1

import (
	"testing"
	"time"

	"github.com/OCAP2/arena/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	export := Build(&MatchData{})

	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.NotNil(t, export.Players)
	assert.NotNil(t, export.Events)
	assert.Nil(t, export.Result)
	assert.Empty(t, export.StartTime)
}

func TestBuild_EventTuples(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &MatchData{
		Info: &core.MatchInfo{Code: "M1", StartTime: start},
		Players: map[string]*PlayerRecord{
			"p1": {Player: core.PlayerState{ID: "p1", Name: "Ann", Position: core.Vec2{X: 1.234, Y: 5}}},
		},
		Order: []string{"p1", "ghost"},
		Shots: []core.ShotEvent{{ShooterID: "p1", Time: start.Add(1500 * time.Millisecond), Origin: core.Vec2{X: 1.005, Y: 2}, Target: core.Vec2{X: 3, Y: 4}, Damage: 10, Cosmetic: true}},
		Hits:  []core.HitEvent{{ShooterID: "p1", VictimID: "p2", Time: start.Add(time.Second), Damage: 10, Health: 90}},
		// before start clamps to 0
		Eliminations: []core.EliminationEvent{{PlayerID: "p2", KillerID: "p1", Time: start.Add(-time.Second)}},
	}

	export := Build(data)

	require.Len(t, export.Players, 1, "ids without a record are skipped")
	assert.Equal(t, [2]float64{1.234, 5}, export.Players[0].Spawn)

	require.Len(t, export.Events, 3)
	assert.Equal(t, []any{int64(0), "eliminated", "p2", "p1", []float64{0, 0}}, export.Events[0])
	assert.Equal(t, "hit", export.Events[1][1])
	assert.Equal(t, int64(1000), export.Events[1][0])

	shot := export.Events[2]
	assert.Equal(t, int64(1500), shot[0])
	assert.Equal(t, "shot", shot[1])
	assert.Equal(t, 1, shot[6])
}

func TestBuild_Result(t *testing.T) {
	export := Build(&MatchData{Result: &core.MatchResult{
		WinnerID: "p1",
		Rankings: []core.RankEntry{{PlayerID: "p1", Rank: 1, KDRatio: 0.3333333}},
	}})

	require.NotNil(t, export.Result)
	assert.Equal(t, []any{1, "p1", "", 0, 0, 0, 0.33, 0}, export.Result.Rankings[0])
}
