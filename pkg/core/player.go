// pkg/core/player.go
package core

// MaxHealth is the health of a freshly spawned player.
const MaxHealth = 100

// PlayerState is one participant as seen by this client.
// Health stays in [0, MaxHealth] and Eliminated is true exactly when Health is 0.
type PlayerState struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Position   Vec2   `json:"position"`
	Facing     Facing `json:"facing"`
	Moving     bool   `json:"moving"`
	Health     int    `json:"health"`
	Stats      Stats  `json:"stats"`
	Score      int    `json:"score"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	Eliminated bool   `json:"eliminated"`
	IsLocal    bool   `json:"-"`
}

// NewPlayerState returns an alive player at full health.
func NewPlayerState(id, name string, pos Vec2, stats Stats) PlayerState {
	return PlayerState{
		ID:       id,
		Name:     name,
		Position: pos,
		Facing:   DefaultFacing,
		Health:   MaxHealth,
		Stats:    stats,
	}
}

// ClampHealth bounds h to [0, MaxHealth].
func ClampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}

// KDRatio is kills per death; a player without deaths scores their kills.
func (p PlayerState) KDRatio() float64 {
	return KDRatio(p.Kills, p.Deaths)
}

// KDRatio computes kills/deaths with deaths == 0 yielding kills (so 0/0 is 0).
func KDRatio(kills, deaths int) float64 {
	if deaths == 0 {
		return float64(kills)
	}
	return float64(kills) / float64(deaths)
}
