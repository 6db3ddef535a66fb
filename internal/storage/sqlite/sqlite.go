// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating the
// in-memory DB and dumping it to <OutputDir>/<match>_<start>.db.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/database"
	gormstorage "github.com/OCAP2/arena/internal/storage/gorm"
	"github.com/OCAP2/arena/pkg/core"

	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	dumpPath string
	lastDump string
}

// New creates a new SQLite storage backend backed by a fresh in-memory database.
func New(cfg config.SQLiteConfig, dbLog zerolog.Logger, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	manager := database.NewManager(dbLog)
	if err := manager.ConnectSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: manager.DB, Logger: log}),
		manager:  manager,
		cfg:      cfg,
		log:      log.With("component", "storage.sqlite"),
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.OutputDir != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, flushes the GORM backend, writes a last
// dump and releases the database.
func (b *Backend) Close() error {
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	b.wg.Wait()

	err := b.Backend.Close()
	if dumpErr := b.dump(); dumpErr != nil && err == nil {
		err = dumpErr
	}
	if closeErr := b.manager.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// StartMatch records the match and picks the dump file for it.
func (b *Backend) StartMatch(info *core.MatchInfo) error {
	if err := b.Backend.StartMatch(info); err != nil {
		return err
	}
	if b.cfg.OutputDir == "" {
		return nil
	}

	b.mu.Lock()
	b.dumpPath = filepath.Join(b.cfg.OutputDir, DumpFileName(info.Code, info.StartTime))
	b.mu.Unlock()
	return nil
}

// EndMatch stores the result and dumps the final state to disk.
func (b *Backend) EndMatch(result core.MatchResult) error {
	if err := b.Backend.EndMatch(result); err != nil {
		return err
	}
	return b.dump()
}

// GetExportedFilePath returns the last dump written, empty before the first.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastDump
}

// DumpFileName is the file a match's database is dumped to.
func DumpFileName(code string, start time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, code)
	if safe == "" {
		safe = "match"
	}
	return fmt.Sprintf("%s_%s.db", safe, start.UTC().Format("20060102_150405"))
}

func (b *Backend) dump() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dumpPath == "" {
		return nil
	}

	start := time.Now()
	if err := b.manager.DumpMemoryToDisk(b.dumpPath); err != nil {
		return err
	}
	b.lastDump = b.dumpPath
	b.log.Debug("Dumped to disk", "path", b.dumpPath, "duration", time.Since(start))
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
