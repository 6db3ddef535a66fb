// Package protocol defines the message catalog exchanged with the relay.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/arena/pkg/core"
)

// Message type constants matching the relay protocol.
const (
	TypeJoinMatch          = "joinMatch"
	TypePlayerMove         = "playerMove"
	TypePlayerMoved        = "playerMoved"
	TypePlayerShoot        = "playerShoot"
	TypePlayerHealthUpdate = "playerHealthUpdate"
	TypePlayerDefeated     = "playerDefeated"
	TypePlayerRespawned    = "playerRespawned"
	TypePlayerJoined       = "playerJoined"
	TypePlayerLeft         = "playerLeft"
	TypeMatchState         = "matchState"
	TypeMatchStarted       = "matchStarted"
	TypeMatchTimer         = "matchTimer"
	TypeMatchEnded         = "matchEnded"
	TypeLeaderboardUpdate  = "leaderboardUpdate"
	TypeSendChatMessage    = "sendChatMessage"
	TypeChatMessage        = "chatMessage"
)

// ErrMissingField is returned by Validate when a required field is absent.
var ErrMissingField = errors.New("missing required field")

// Validator is implemented by payloads that can reject themselves before use.
type Validator interface {
	Validate() error
}

// ErrBadCoordinate is returned by Validate for a coordinate that is not a
// finite number within MaxCoordinate.
var ErrBadCoordinate = errors.New("bad coordinate")

// MaxCoordinate bounds every coordinate on the wire. Arenas are a few
// thousand units across; anything larger is garbage.
const MaxCoordinate = 1e6

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// coords checks that every value is finite and within MaxCoordinate.
func coords(field string, vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxCoordinate {
			return fmt.Errorf("%w: %s=%v", ErrBadCoordinate, field, v)
		}
	}
	return nil
}

func playerCoords(field string, p core.PlayerState) error {
	return coords(field, p.Position.X, p.Position.Y)
}

// Float returns a pointer to v, for building payloads with required numbers.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// JoinMatch registers a participant with the relay.
type JoinMatch struct {
	MatchCode string      `json:"matchCode"`
	PlayerID  string      `json:"playerId"`
	Name      string      `json:"name,omitempty"`
	Stats     *core.Stats `json:"stats,omitempty"`
}

func (m JoinMatch) Validate() error {
	if m.MatchCode == "" {
		return missing("matchCode")
	}
	if m.PlayerID == "" {
		return missing("playerId")
	}
	return nil
}

// PlayerMove is the throttled position report of the local player.
type PlayerMove struct {
	MatchCode string   `json:"matchCode"`
	PlayerID  string   `json:"playerId"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
}

func (m PlayerMove) Validate() error {
	if m.MatchCode == "" {
		return missing("matchCode")
	}
	if m.PlayerID == "" {
		return missing("playerId")
	}
	if m.X == nil || m.Y == nil {
		return missing("x/y")
	}
	return coords("x/y", *m.X, *m.Y)
}

// PlayerMoved is a relayed position report of another player.
type PlayerMoved struct {
	PlayerID string   `json:"playerId"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

func (m PlayerMoved) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	if m.X == nil || m.Y == nil {
		return missing("x/y")
	}
	return coords("x/y", *m.X, *m.Y)
}

// Position returns the reported coordinates. Call Validate first.
func (m PlayerMoved) Position() core.Vec2 {
	return core.Vec2{X: *m.X, Y: *m.Y}
}

// PlayerShoot is sent by the shooter and fanned out to peers unchanged.
type PlayerShoot struct {
	MatchCode string   `json:"matchCode"`
	PlayerID  string   `json:"playerId"`
	StartX    *float64 `json:"startX"`
	StartY    *float64 `json:"startY"`
	TargetX   *float64 `json:"targetX"`
	TargetY   *float64 `json:"targetY"`
	Damage    *int     `json:"damage"`
}

func (m PlayerShoot) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	if m.StartX == nil || m.StartY == nil {
		return missing("startX/startY")
	}
	if m.TargetX == nil || m.TargetY == nil {
		return missing("targetX/targetY")
	}
	if m.Damage == nil {
		return missing("damage")
	}
	if err := coords("start", *m.StartX, *m.StartY); err != nil {
		return err
	}
	return coords("target", *m.TargetX, *m.TargetY)
}

func (m PlayerShoot) Start() core.Vec2  { return core.Vec2{X: *m.StartX, Y: *m.StartY} }
func (m PlayerShoot) Target() core.Vec2 { return core.Vec2{X: *m.TargetX, Y: *m.TargetY} }

// NewPlayerShoot builds a fire message.
func NewPlayerShoot(matchCode, playerID string, start, target core.Vec2, damage int) PlayerShoot {
	return PlayerShoot{
		MatchCode: matchCode,
		PlayerID:  playerID,
		StartX:    Float(start.X),
		StartY:    Float(start.Y),
		TargetX:   Float(target.X),
		TargetY:   Float(target.Y),
		Damage:    Int(damage),
	}
}

// PlayerHealthUpdate propagates damage resolved by the shooter's client.
// PlayerID is the player whose health changed.
type PlayerHealthUpdate struct {
	MatchCode string `json:"matchCode"`
	PlayerID  string `json:"playerId"`
	Health    *int   `json:"health"`
	ShooterID string `json:"shooterId,omitempty"`
	Damage    int    `json:"damage,omitempty"`
}

func (m PlayerHealthUpdate) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	if m.Health == nil {
		return missing("health")
	}
	return nil
}

// PlayerDefeated triggers the elimination cue for a player.
type PlayerDefeated struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

func (m PlayerDefeated) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	return nil
}

// PlayerRespawned resets an eliminated player.
type PlayerRespawned struct {
	PlayerID string     `json:"playerId"`
	Name     string     `json:"name,omitempty"`
	Health   *int       `json:"health"`
	Position *core.Vec2 `json:"position"`
}

func (m PlayerRespawned) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	if m.Health == nil {
		return missing("health")
	}
	if *m.Health <= 0 {
		return fmt.Errorf("respawn health must be positive, got %d", *m.Health)
	}
	if m.Position == nil {
		return missing("position")
	}
	return coords("position", m.Position.X, m.Position.Y)
}

// PlayerJoined announces a new participant.
type PlayerJoined struct {
	Player core.PlayerState `json:"player"`
}

func (m PlayerJoined) Validate() error {
	if m.Player.ID == "" {
		return missing("player.id")
	}
	return playerCoords("player.position", m.Player)
}

// PlayerLeft announces a departed participant.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

func (m PlayerLeft) Validate() error {
	if m.PlayerID == "" {
		return missing("playerId")
	}
	return nil
}

// MatchSnapshot carries a full match state for matchState and matchStarted.
type MatchSnapshot struct {
	Match core.MatchState `json:"match"`
}

func (m MatchSnapshot) Validate() error {
	if m.Match.Code == "" {
		return missing("match.code")
	}
	for i, p := range m.Match.Players {
		if p.ID == "" {
			return missing(fmt.Sprintf("match.players[%d].id", i))
		}
		if err := playerCoords(fmt.Sprintf("match.players[%d].position", i), p); err != nil {
			return err
		}
	}
	return nil
}

// MatchTimer is the relay's countdown tick.
type MatchTimer struct {
	TimeLeft *int `json:"timeLeft"`
}

func (m MatchTimer) Validate() error {
	if m.TimeLeft == nil {
		return missing("timeLeft")
	}
	return nil
}

// MatchEnded carries the relay's view of the final standings.
type MatchEnded struct {
	Result core.MatchResult `json:"result"`
}

// LeaderboardRow is one player's live tally.
type LeaderboardRow struct {
	PlayerID string `json:"id"`
	Name     string `json:"name,omitempty"`
	Score    int    `json:"score"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

// LeaderboardUpdate refreshes the live ranking.
type LeaderboardUpdate struct {
	Players []LeaderboardRow `json:"players"`
}

func (m LeaderboardUpdate) Validate() error {
	for i, r := range m.Players {
		if r.PlayerID == "" {
			return missing(fmt.Sprintf("players[%d].id", i))
		}
	}
	return nil
}

// SendChatMessage is a chat line from this client.
type SendChatMessage struct {
	MatchCode string `json:"matchCode"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
}

func (m SendChatMessage) Validate() error {
	if m.SenderID == "" {
		return missing("senderId")
	}
	if m.Text == "" {
		return missing("text")
	}
	return nil
}

// ChatMessage is a chat line fanned out by the relay.
type ChatMessage struct {
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (m ChatMessage) Validate() error {
	if m.SenderID == "" {
		return missing("senderId")
	}
	return nil
}
