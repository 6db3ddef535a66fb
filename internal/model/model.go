package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Match{},
	&Participant{},
	&Shot{},
	&Hit{},
	&Elimination{},
	&Respawn{},
	&ChatMessage{},
	&Ranking{},
	&SinkPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SinkPerformance is a snapshot of the writer queues taken each write cycle
type SinkPerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_sinkperf_time"`
	MatchID             uint              `json:"matchId" gorm:"index:idx_sinkperf_match_id"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*SinkPerformance) TableName() string {
	return "sink_performances"
}

// WriteQueueLengths is the number of records waiting per queue
type WriteQueueLengths struct {
	Shots        uint16 `json:"shots"`
	Hits         uint16 `json:"hits"`
	Eliminations uint16 `json:"eliminations"`
	Respawns     uint16 `json:"respawns"`
	Chat         uint16 `json:"chat"`
}

////////////////////////
// MATCH MODELS
////////////////////////

// Match is one combat session as seen by the recording client
type Match struct {
	gorm.Model
	Code            string         `json:"code" gorm:"size:32;index:idx_match_code"`
	MapID           string         `json:"mapId" gorm:"size:64"`
	Mode            string         `json:"mode" gorm:"size:16"`
	Stake           float64        `json:"stake"`
	DurationSeconds int            `json:"duration"`
	LocalPlayerID   string         `json:"localPlayerId" gorm:"size:64"`
	StartTime       time.Time      `json:"startTime" gorm:"type:timestamptz"`
	EndTime         sql.NullTime   `json:"endTime" gorm:"type:timestamptz"`
	WinnerID        string         `json:"winnerId" gorm:"size:64"`
	Draw            bool           `json:"draw"`
	Settings        datatypes.JSON `json:"settings"` // settings as received from the relay
	Participants    []Participant  `json:"participants"`
	Rankings        []Ranking      `json:"rankings"`
}

func (*Match) TableName() string {
	return "matches"
}

// Participant is a player present when the match started
type Participant struct {
	ID             uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID        uint       `json:"matchId" gorm:"index:idx_participant_match_id"`
	PlayerID       string     `json:"playerId" gorm:"size:64"`
	Name           string     `json:"name" gorm:"size:64"`
	Speed          float64    `json:"speed"`
	ShootRange     float64    `json:"shootRange"`
	ShotsPerMinute float64    `json:"shotsPerMinute"`
	HitPower       int        `json:"hitPower"`
	SpawnPosition  geom.Point `json:"spawnPosition"`
}

func (*Participant) TableName() string {
	return "participants"
}

////////////////////////
// EVENT MODELS
////////////////////////

// Shot is one accepted fire action
type Shot struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time" gorm:"type:timestamptz;"`
	MatchID   uint       `json:"matchId" gorm:"index:idx_shot_match_id"`
	ShooterID string     `json:"shooterId" gorm:"size:64;index:idx_shot_shooter_id"`
	Origin    geom.Point `json:"origin"`
	Target    geom.Point `json:"target"`
	Path      string     `json:"path"` // WKT line string from origin to target
	Distance  float64    `json:"distance"`
	Damage    int        `json:"damage"`
	Cosmetic  bool       `json:"cosmetic"` // mirrored from a peer, never collides locally
}

func (*Shot) TableName() string {
	return "shots"
}

// Hit is a collision resolved by the shooter's client
type Hit struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time" gorm:"type:timestamptz;"`
	MatchID     uint       `json:"matchId" gorm:"index:idx_hit_match_id"`
	ShooterID   string     `json:"shooterId" gorm:"size:64"`
	VictimID    string     `json:"victimId" gorm:"size:64;index:idx_hit_victim_id"`
	Damage      int        `json:"damage"`
	HealthAfter int        `json:"healthAfter"`
	Position    geom.Point `json:"position"`
}

func (*Hit) TableName() string {
	return "hits"
}

// Elimination is a player's health reaching zero
type Elimination struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time  `json:"time" gorm:"type:timestamptz;"`
	MatchID  uint       `json:"matchId" gorm:"index:idx_elimination_match_id"`
	PlayerID string     `json:"playerId" gorm:"size:64"`
	Name     string     `json:"name" gorm:"size:64"`
	KillerID string     `json:"killerId" gorm:"size:64"`
	Position geom.Point `json:"position"`
}

func (*Elimination) TableName() string {
	return "eliminations"
}

// Respawn is an eliminated player returning to play
type Respawn struct {
	ID       uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time  `json:"time" gorm:"type:timestamptz;"`
	MatchID  uint       `json:"matchId" gorm:"index:idx_respawn_match_id"`
	PlayerID string     `json:"playerId" gorm:"size:64"`
	Health   int        `json:"health"`
	Position geom.Point `json:"position"`
}

func (*Respawn) TableName() string {
	return "respawns"
}

// ChatMessage is a chat line seen during the match
type ChatMessage struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	MatchID  uint      `json:"matchId" gorm:"index:idx_chat_match_id"`
	SenderID string    `json:"senderId" gorm:"size:64"`
	Text     string    `json:"text" gorm:"size:512"`
}

func (*ChatMessage) TableName() string {
	return "chat_messages"
}

// Ranking is one row of the final standings
type Ranking struct {
	ID       uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID  uint    `json:"matchId" gorm:"index:idx_ranking_match_id"`
	PlayerID string  `json:"playerId" gorm:"size:64"`
	Name     string  `json:"name" gorm:"size:64"`
	Rank     int     `json:"rank"`
	Score    int     `json:"score"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	KDRatio  float64 `json:"kdRatio"`
	Health   int     `json:"health"`
}

func (*Ranking) TableName() string {
	return "rankings"
}
