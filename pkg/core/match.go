// pkg/core/match.go
package core

import (
	"errors"
	"fmt"
)

// MatchMode is how a match is played for.
type MatchMode string

const (
	ModeFriendly MatchMode = "friendly"
	ModeRated    MatchMode = "rated"
)

// MatchStatus is the lifecycle phase of a match.
type MatchStatus string

const (
	StatusLobby  MatchStatus = "lobby"
	StatusActive MatchStatus = "active"
	StatusEnded  MatchStatus = "ended"
)

// ErrIncompleteSettings is returned when a settings object is missing a required field.
var ErrIncompleteSettings = errors.New("incomplete match settings")

// MatchSettings are owned by the relay and arrive with the start signal.
type MatchSettings struct {
	DurationSeconds int       `json:"duration"`
	MapID           string    `json:"mapId"`
	Mode            MatchMode `json:"mode"`
	Stake           float64   `json:"stake,omitempty"`
}

// Complete checks the settings carry everything a match needs to start.
// Stake is only required for rated matches.
func (s MatchSettings) Complete() error {
	if s.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrIncompleteSettings)
	}
	if s.MapID == "" {
		return fmt.Errorf("%w: missing map id", ErrIncompleteSettings)
	}
	switch s.Mode {
	case ModeFriendly:
	case ModeRated:
		if s.Stake <= 0 {
			return fmt.Errorf("%w: rated match requires a stake", ErrIncompleteSettings)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrIncompleteSettings, s.Mode)
	}
	return nil
}

// RankEntry is one row of a final or live ranking.
type RankEntry struct {
	PlayerID string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Rank     int     `json:"rank"`
	Score    int     `json:"score"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	KDRatio  float64 `json:"kdRatio"`
	Health   int     `json:"health"`
}

// MatchResult is computed once when a match ends. WinnerID is empty on a draw.
type MatchResult struct {
	WinnerID string      `json:"winnerId,omitempty"`
	Draw     bool        `json:"draw"`
	Rankings []RankEntry `json:"rankings"`
}

// MatchState is the client's view of one combat session.
type MatchState struct {
	Code     string        `json:"code"`
	Settings MatchSettings `json:"settings"`
	Players  []PlayerState `json:"players"`
	TimeLeft int           `json:"timeLeft"`
	Status   MatchStatus   `json:"status"`
	Result   *MatchResult  `json:"result,omitempty"`
}
