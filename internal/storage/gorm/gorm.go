// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. The tick loop only
// ever pushes to a queue; inserts happen in batches on the writer.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/arena/internal/database"
	"github.com/OCAP2/arena/internal/model"
	"github.com/OCAP2/arena/internal/model/convert"
	"github.com/OCAP2/arena/internal/queue"
	"github.com/OCAP2/arena/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued events are written.
const DefaultFlushInterval = 2 * time.Second

// ErrUnknownMatch is returned by the read helpers for a code never recorded.
var ErrUnknownMatch = errors.New("unknown match")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Shots        *queue.Queue[model.Shot]
	Hits         *queue.Queue[model.Hit]
	Eliminations *queue.Queue[model.Elimination]
	Respawns     *queue.Queue[model.Respawn]
	Chat         *queue.Queue[model.ChatMessage]
}

func newQueues() *queues {
	return &queues{
		Shots:        queue.New[model.Shot](),
		Hits:         queue.New[model.Hit](),
		Eliminations: queue.New[model.Elimination](),
		Respawns:     queue.New[model.Respawn](),
		Chat:         queue.New[model.ChatMessage](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	log      *slog.Logger
	queues   *queues
	matchID  atomic.Uint64
	stopChan chan struct{}
	done     chan struct{}
	// serializes Flush between the writer goroutine and EndMatch/Close
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// New creates a new GORM storage backend. A nil DB gives a queue-only
// backend, which is what the unit tests use.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps: deps,
		log:  deps.Logger.With("component", "storage.gorm"),
	}
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SetDB attaches a connection opened after New. It must be called before Init.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB != nil {
		b.log.Info("Migrating schema", "dialect", b.deps.DB.Dialector.Name())
		if err := database.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan == nil {
			return
		}
		close(b.stopChan)
		<-b.done
		err = b.Flush()
	})
	return err
}

// StartMatch inserts the match and its roster and remembers the match ID for
// the writer.
func (b *Backend) StartMatch(info *core.MatchInfo) error {
	if b.deps.DB == nil {
		return nil
	}

	m := convert.CoreToMatch(*info)
	if err := b.deps.DB.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert new match: %w", err)
	}
	b.matchID.Store(uint64(m.ID))
	b.log.Info("Match recorded", "code", info.Code, "id", m.ID, "players", len(m.Participants))
	return nil
}

// MatchID returns the DB ID of the current match, 0 before StartMatch.
func (b *Backend) MatchID() uint {
	return uint(b.matchID.Load())
}

// EndMatch flushes pending events, then stores the end time, winner and ranking.
func (b *Backend) EndMatch(result core.MatchResult) error {
	if err := b.Flush(); err != nil {
		return err
	}
	id := b.MatchID()
	if b.deps.DB == nil || id == 0 {
		return nil
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Match{}).Where("id = ?", id).Updates(map[string]any{
			"end_time":  sql.NullTime{Time: time.Now(), Valid: true},
			"winner_id": result.WinnerID,
			"draw":      result.Draw,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update match: %w", err)
		}
		rows := convert.CoreToRankings(id, result)
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert rankings: %w", err)
		}
		return nil
	})
}

// RecordShot converts and queues a shot.
func (b *Backend) RecordShot(e *core.ShotEvent) error {
	b.queues.Shots.Push(convert.CoreToShot(*e))
	return nil
}

// RecordHit converts and queues a hit.
func (b *Backend) RecordHit(e *core.HitEvent) error {
	b.queues.Hits.Push(convert.CoreToHit(*e))
	return nil
}

// RecordElimination converts and queues an elimination.
func (b *Backend) RecordElimination(e *core.EliminationEvent) error {
	b.queues.Eliminations.Push(convert.CoreToElimination(*e))
	return nil
}

// RecordRespawn converts and queues a respawn.
func (b *Backend) RecordRespawn(e *core.RespawnEvent) error {
	b.queues.Respawns.Push(convert.CoreToRespawn(*e))
	return nil
}

// RecordChat converts and queues a chat line.
func (b *Backend) RecordChat(e *core.ChatEvent) error {
	b.queues.Chat.Push(convert.CoreToChatMessage(*e))
	return nil
}

// writeBatch caps the rows created per transaction.
const writeBatch = 500

// writeQueue drains a queue into the database, one transaction per batch.
// On failure the failed batch goes back on the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) error {
	for !q.Empty() {
		items := q.Take(writeBatch)
		if prepare != nil {
			prepare(items)
		}

		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			log.Error("Error creating records", "table", name, "count", len(items), "error", err)
			tx.Rollback()
			q.Push(items...)
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}
	return nil
}

// Flush writes every queue once. It is a no-op without a DB or a match.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.deps.DB == nil || b.queues == nil {
		return nil
	}
	matchID := b.MatchID()
	if matchID == 0 {
		return nil
	}

	db := b.deps.DB
	start := time.Now()
	lengths := model.WriteQueueLengths{
		Shots:        uint16(b.queues.Shots.Len()),
		Hits:         uint16(b.queues.Hits.Len()),
		Eliminations: uint16(b.queues.Eliminations.Len()),
		Respawns:     uint16(b.queues.Respawns.Len()),
		Chat:         uint16(b.queues.Chat.Len()),
	}

	errs := []error{
		writeQueue(db, b.queues.Shots, "shots", b.log, func(items []model.Shot) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.Hits, "hits", b.log, func(items []model.Hit) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.Eliminations, "eliminations", b.log, func(items []model.Elimination) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.Respawns, "respawns", b.log, func(items []model.Respawn) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
		writeQueue(db, b.queues.Chat, "chat messages", b.log, func(items []model.ChatMessage) {
			for i := range items {
				items[i].MatchID = matchID
			}
		}),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if lengths != (model.WriteQueueLengths{}) {
		perf := model.SinkPerformance{
			Time:                start,
			MatchID:             matchID,
			WriteQueueLengths:   lengths,
			LastWriteDurationMs: float32(time.Since(start).Microseconds()) / 1000,
		}
		if err := db.Create(&perf).Error; err != nil {
			b.log.Warn("Failed to record sink performance", "error", err)
		}
	}
	return nil
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("Write cycle failed", "error", err)
			}
		}
	}
}

// LoadMatch reads back the most recent match recorded under code.
func (b *Backend) LoadMatch(code string) (core.MatchState, error) {
	return LoadMatch(b.deps.DB, code)
}

// LoadMatch reads back the most recent match recorded under code from db.
func LoadMatch(db *gorm.DB, code string) (core.MatchState, error) {
	if db == nil {
		return core.MatchState{}, fmt.Errorf("no database")
	}
	var m model.Match
	err := db.Preload("Participants").Preload("Rankings").
		Where("code = ?", code).Order("id desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.MatchState{}, fmt.Errorf("%w: %s", ErrUnknownMatch, code)
	}
	if err != nil {
		return core.MatchState{}, fmt.Errorf("failed to load match: %w", err)
	}
	return convert.MatchToCore(m), nil
}

// LoadShots reads back the shots of the most recent match recorded under code.
func LoadShots(db *gorm.DB, code string) ([]core.ShotEvent, error) {
	var m model.Match
	err := db.Where("code = ?", code).Order("id desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}

	var rows []model.Shot
	if err := db.Where("match_id = ?", m.ID).Order("time asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load shots: %w", err)
	}
	out := make([]core.ShotEvent, 0, len(rows))
	for _, s := range rows {
		out = append(out, convert.ShotToCore(code, s))
	}
	return out, nil
}
