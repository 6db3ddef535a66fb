package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/influx"
	"github.com/OCAP2/arena/internal/storage"
	"github.com/OCAP2/arena/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/arena/internal/storage/sqlite"
)

func TestHttpToWS(t *testing.T) {
	assert.Equal(t, "ws://localhost:5000", httpToWS("http://localhost:5000/"))
	assert.Equal(t, "wss://results.example.com", httpToWS("https://results.example.com"))
}

func TestCreateStorageBackend(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	start := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		typ  string
		want any
	}{
		{"memory", &memory.Backend{}},
		{"none", storage.Nop{}},
		{"sqlite", &sqlitestorage.Backend{}},
		{"influx", &influx.Backend{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			b, err := createStorageBackend(config.StorageConfig{Type: tt.typ}, zerolog.Nop(), log, t.TempDir(), start)
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}

	_, err := createStorageBackend(config.StorageConfig{Type: "tape"}, zerolog.Nop(), log, t.TempDir(), start)
	assert.Error(t, err)
}
