// Package monitor periodically writes the client status to a file and the log
// so a running headless client can be watched from outside.
package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/OCAP2/arena/internal/session"
)

// Status is one sample written to the status file.
type Status struct {
	Time        time.Time `json:"time"`
	Match       string    `json:"match"`
	Player      string    `json:"player"`
	Phase       string    `json:"phase"`
	TimeLeft    int       `json:"timeLeft"`
	Players     int       `json:"players"`
	Alive       int       `json:"alive"`
	Projectiles int       `json:"projectiles"`
	Health      int       `json:"health"`
	CooldownMs  int64     `json:"cooldownMs"`
	Goroutines  int       `json:"goroutines"`
	HeapMB      float64   `json:"heapMb"`
}

// Source reports the latest session summary; ok is false until there is one.
type Source func() (session.Summary, bool)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source   Source
	Match    string
	Player   string
	Logger   *slog.Logger
	Path     string // status file, empty to only log
	Interval time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample builds a status from the latest summary.
func (s *Service) Sample() (Status, bool) {
	sum, ok := s.deps.Source()
	if !ok {
		return Status{}, false
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Status{
		Time:        sum.Time,
		Match:       s.deps.Match,
		Player:      s.deps.Player,
		Phase:       string(sum.Status),
		TimeLeft:    sum.TimeLeft,
		Players:     sum.Players,
		Alive:       sum.Alive,
		Projectiles: sum.Projectiles,
		Health:      sum.Health,
		CooldownMs:  sum.Cooldown.Milliseconds(),
		Goroutines:  runtime.NumGoroutine(),
		HeapMB:      float64(mem.HeapAlloc) / (1 << 20),
	}, true
}

// WriteStatus writes st as indented JSON.
func WriteStatus(w io.Writer, st Status) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go s.loop(stop, done)
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		close(done)
	}()

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	var statusFile *os.File
	if s.deps.Path != "" {
		f, err := os.Create(s.deps.Path)
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		} else {
			statusFile = f
			defer statusFile.Close()
		}
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st, ok := s.Sample()
			if !ok {
				continue
			}
			logger.Debug("Status",
				"phase", st.Phase,
				"timeLeft", st.TimeLeft,
				"alive", st.Alive,
				"projectiles", st.Projectiles,
				"health", st.Health)

			if statusFile == nil {
				continue
			}
			if err := statusFile.Truncate(0); err != nil {
				logger.Error("Error truncating status file", "error", err)
				continue
			}
			if _, err := statusFile.Seek(0, 0); err != nil {
				continue
			}
			if err := WriteStatus(statusFile, st); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
