package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/influx"
	"github.com/OCAP2/arena/internal/logging"
	"github.com/OCAP2/arena/internal/storage"
	pgstorage "github.com/OCAP2/arena/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/arena/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/arena/internal/storage/websocket"
	"github.com/OCAP2/arena/pkg/protocol"

	"github.com/rs/zerolog"
)

// createStorageBackend builds the event sink selected by storage.type. The
// connected backends live here; storage.NewBackend covers the rest.
func createStorageBackend(cfg config.StorageConfig, dbLog zerolog.Logger, logger *slog.Logger, logsDir string, start time.Time) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized", "host", cfg.Postgres.Host)
		return pgstorage.New(cfg.Postgres, dbLog, logger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(cfg.SQLite, dbLog, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "outputDir", cfg.SQLite.OutputDir)
		return backend, nil

	case "influx":
		backup := logging.BackupFilePath(logsDir, start)
		manager := influx.NewManager(cfg.Influx, dbLog, backup)
		logger.Info("InfluxDB storage backend initialized", "url", manager.URL())
		return influx.NewBackend(manager), nil

	case "websocket":
		api := config.GetAPIConfig()
		codec, err := protocol.CodecByName(config.GetRelayConfig().Codec)
		if err != nil {
			return nil, err
		}
		wsURL := httpToWS(api.ServerURL) + "/api/stream"
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:   wsURL,
			Token: api.APIKey,
			Codec: codec,
		}, logger), nil

	default:
		backend, err := storage.NewBackend(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Storage backend initialized", "type", cfg.Type)
		return backend, nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
