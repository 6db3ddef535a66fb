// Package storage defines the event sink the session records a match into.
package storage

import "github.com/OCAP2/arena/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Record calls come from the tick loop and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Match management
	StartMatch(info *core.MatchInfo) error
	EndMatch(result core.MatchResult) error

	// Event recording
	RecordShot(e *core.ShotEvent) error
	RecordHit(e *core.HitEvent) error
	RecordElimination(e *core.EliminationEvent) error
	RecordRespawn(e *core.RespawnEvent) error
	RecordChat(e *core.ChatEvent) error
}

// Exportable is an optional interface for backends that write a file when a
// match ends.
type Exportable interface {
	GetExportedFilePath() string
}

// Nop discards everything. It is used when no sink is configured.
type Nop struct{}

func (Nop) Init() error                                    { return nil }
func (Nop) Close() error                                   { return nil }
func (Nop) StartMatch(*core.MatchInfo) error               { return nil }
func (Nop) EndMatch(core.MatchResult) error                { return nil }
func (Nop) RecordShot(*core.ShotEvent) error               { return nil }
func (Nop) RecordHit(*core.HitEvent) error                 { return nil }
func (Nop) RecordElimination(*core.EliminationEvent) error { return nil }
func (Nop) RecordRespawn(*core.RespawnEvent) error         { return nil }
func (Nop) RecordChat(*core.ChatEvent) error               { return nil }
