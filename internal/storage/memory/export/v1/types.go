// Package v1 contains the v1 export format for recorded arena matches.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int      `json:"formatVersion"`
	MatchCode     string   `json:"matchCode"`
	MapID         string   `json:"mapId"`
	Mode          string   `json:"mode"`
	Stake         float64  `json:"stake,omitempty"`
	Duration      int      `json:"duration"`
	LocalPlayerID string   `json:"localPlayerId"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime,omitempty"`
	Players       []Player `json:"players"`
	// Events are positional tuples; the first element is milliseconds since
	// match start and the second is the event kind.
	Events [][]any `json:"events"`
	Result *Result `json:"result,omitempty"`
}

// Player is one participant with the tallies this client observed
type Player struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Spawn        [2]float64 `json:"spawn"`
	Shots        int        `json:"shots"`
	Hits         int        `json:"hits"`
	DamageDealt  int        `json:"damageDealt"`
	DamageTaken  int        `json:"damageTaken"`
	Eliminations int        `json:"eliminations"`
	Deaths       int        `json:"deaths"`
}

// Result is the final standings
type Result struct {
	WinnerID string `json:"winnerId,omitempty"`
	Draw     bool   `json:"draw"`
	// Rankings rows: [rank, id, name, score, kills, deaths, kd, health]
	Rankings [][]any `json:"rankings"`
}
