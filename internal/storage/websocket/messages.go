package websocket

import "github.com/OCAP2/arena/pkg/core"

// Stream message types. Start and end are acknowledged by the server.
const (
	TypeStreamStart       = "streamStart"
	TypeStreamShot        = "streamShot"
	TypeStreamHit         = "streamHit"
	TypeStreamElimination = "streamElimination"
	TypeStreamRespawn     = "streamRespawn"
	TypeStreamChat        = "streamChat"
	TypeStreamEnd         = "streamEnd"
	TypeAck               = "ack"
)

// Ack confirms receipt of a start or end message.
type Ack struct {
	For string `json:"for"`
}

// StartPayload opens a stream for one match.
type StartPayload struct {
	Code      string             `json:"code"`
	Settings  core.MatchSettings `json:"settings"`
	LocalID   string             `json:"localId"`
	StartTime int64              `json:"startTime"` // unix ms
	Players   []core.PlayerState `json:"players"`
}

// ShotPayload is one accepted shot.
type ShotPayload struct {
	ShooterID string    `json:"shooterId"`
	Time      int64     `json:"time"`
	Origin    core.Vec2 `json:"origin"`
	Target    core.Vec2 `json:"target"`
	Damage    int       `json:"damage"`
	Cosmetic  bool      `json:"cosmetic,omitempty"`
}

// HitPayload is one resolved hit.
type HitPayload struct {
	ShooterID string    `json:"shooterId"`
	VictimID  string    `json:"victimId"`
	Time      int64     `json:"time"`
	Damage    int       `json:"damage"`
	Health    int       `json:"health"`
	Position  core.Vec2 `json:"position"`
}

// EliminationPayload is one elimination.
type EliminationPayload struct {
	PlayerID string    `json:"playerId"`
	KillerID string    `json:"killerId,omitempty"`
	Time     int64     `json:"time"`
	Position core.Vec2 `json:"position"`
}

// RespawnPayload is one respawn.
type RespawnPayload struct {
	PlayerID string    `json:"playerId"`
	Health   int       `json:"health"`
	Time     int64     `json:"time"`
	Position core.Vec2 `json:"position"`
}

// ChatPayload is one chat line.
type ChatPayload struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	Time     int64  `json:"time"`
}

// EndPayload closes the stream with the final standings.
type EndPayload struct {
	Result core.MatchResult `json:"result"`
}
