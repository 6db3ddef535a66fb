// Package postgres implements the storage.Backend interface on a PostgreSQL
// server. Connection handling lives here; queueing and batch writes come from
// the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/database"
	gormstorage "github.com/OCAP2/arena/internal/storage/gorm"

	"github.com/rs/zerolog"
)

// Backend is a GORM backend whose connection is opened on Init.
type Backend struct {
	*gormstorage.Backend
	cfg     config.PostgresConfig
	manager *database.Manager
}

// New creates a postgres backend. No connection is made until Init.
func New(cfg config.PostgresConfig, dbLog zerolog.Logger, log *slog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: log}),
		cfg:     cfg,
		manager: database.NewManager(dbLog),
	}
}

// Init connects, migrates and starts the writer.
func (b *Backend) Init() error {
	if err := b.manager.ConnectPostgres(b.cfg); err != nil {
		return err
	}
	b.Backend.SetDB(b.manager.DB)
	if err := b.Backend.Init(); err != nil {
		_ = b.manager.Close()
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the connection pool.
func (b *Backend) Close() error {
	err := b.Backend.Close()
	if closeErr := b.manager.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
