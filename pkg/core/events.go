// pkg/core/events.go
package core

import "time"

// ShotEvent is an accepted fire action, local or mirrored from a peer.
type ShotEvent struct {
	MatchCode string
	ShooterID string
	Time      time.Time
	Origin    Vec2
	Target    Vec2
	Damage    int
	Cosmetic  bool
}

// HitEvent is a hit resolved by the shooter's client.
type HitEvent struct {
	MatchCode string
	ShooterID string
	VictimID  string
	Time      time.Time
	Damage    int
	Health    int
	Position  Vec2
}

// EliminationEvent is emitted when a player's health reaches zero.
type EliminationEvent struct {
	MatchCode string
	PlayerID  string
	Name      string
	KillerID  string
	Time      time.Time
	Position  Vec2
}

// RespawnEvent is emitted when a respawn restores an eliminated player.
type RespawnEvent struct {
	MatchCode string
	PlayerID  string
	Health    int
	Position  Vec2
	Time      time.Time
}

// ChatEvent is a chat line seen during a match.
type ChatEvent struct {
	MatchCode string
	SenderID  string
	Text      string
	Time      time.Time
}

// MatchInfo identifies a match handed to an event sink when it starts.
type MatchInfo struct {
	Code      string
	Settings  MatchSettings
	LocalID   string
	StartTime time.Time
	Players   []PlayerState
}
