// Package memory keeps a match's events in memory and exports them as JSON
// when the match ends.
package memory

import (
	"sync"
	"time"

	"github.com/OCAP2/arena/internal/config"
	v1 "github.com/OCAP2/arena/internal/storage/memory/export/v1"
	"github.com/OCAP2/arena/pkg/core"
)

// Backend stores match data in memory and exports to JSON
type Backend struct {
	cfg  config.MemoryConfig
	info *core.MatchInfo

	players map[string]*v1.PlayerRecord // keyed by player id
	order   []string

	shots        []core.ShotEvent
	hits         []core.HitEvent
	eliminations []core.EliminationEvent
	respawns     []core.RespawnEvent
	chat         []core.ChatEvent
	result       *core.MatchResult
	endTime      time.Time

	lastExportPath string
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		players: make(map[string]*v1.PlayerRecord),
		now:     time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMatch begins recording a new match, dropping anything recorded before.
func (b *Backend) StartMatch(info *core.MatchInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *info
	b.info = &cp

	b.players = make(map[string]*v1.PlayerRecord)
	b.order = nil
	b.shots = nil
	b.hits = nil
	b.eliminations = nil
	b.respawns = nil
	b.chat = nil
	b.result = nil
	b.endTime = time.Time{}
	b.lastExportPath = ""

	for _, p := range info.Players {
		b.player(p.ID).Player = p
	}
	return nil
}

// EndMatch stores the result and exports the match data
func (b *Backend) EndMatch(result core.MatchResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result = &result
	b.endTime = b.now()
	if b.info == nil || b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// player returns the record for id, creating it for late joiners.
// Callers hold the write lock.
func (b *Backend) player(id string) *v1.PlayerRecord {
	rec, ok := b.players[id]
	if !ok {
		rec = &v1.PlayerRecord{Player: core.PlayerState{ID: id}}
		b.players[id] = rec
		b.order = append(b.order, id)
	}
	return rec
}

// RecordShot records an accepted shot
func (b *Backend) RecordShot(e *core.ShotEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.shots = append(b.shots, *e)
	b.player(e.ShooterID).Shots++
	return nil
}

// RecordHit records a resolved hit
func (b *Backend) RecordHit(e *core.HitEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hits = append(b.hits, *e)
	shooter := b.player(e.ShooterID)
	shooter.Hits++
	shooter.DamageDealt += e.Damage
	b.player(e.VictimID).DamageTaken += e.Damage
	return nil
}

// RecordElimination records a player reaching zero health
func (b *Backend) RecordElimination(e *core.EliminationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.eliminations = append(b.eliminations, *e)
	b.player(e.PlayerID).Deaths++
	if e.KillerID != "" && e.KillerID != e.PlayerID {
		b.player(e.KillerID).Eliminations++
	}
	return nil
}

// RecordRespawn records a respawn
func (b *Backend) RecordRespawn(e *core.RespawnEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.respawns = append(b.respawns, *e)
	return nil
}

// RecordChat records a chat line
func (b *Backend) RecordChat(e *core.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chat = append(b.chat, *e)
	return nil
}

// GetPlayerRecord returns a copy of the tallies for a player
func (b *Backend) GetPlayerRecord(id string) (v1.PlayerRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.players[id]
	if !ok {
		return v1.PlayerRecord{}, false
	}
	return *rec, true
}

// Counts returns the number of recorded shots, hits, eliminations and respawns
func (b *Backend) Counts() (shots, hits, eliminations, respawns int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.shots), len(b.hits), len(b.eliminations), len(b.respawns)
}

// GetExportedFilePath returns the path of the last export, empty before the first
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
