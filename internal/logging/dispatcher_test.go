package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("msg", "type", "shot") }},
		{"info", func(l *DispatcherLogger) { l.Info("msg", "type", "shot") }},
		{"error", func(l *DispatcherLogger) { l.Error("msg", "type", "shot") }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "msg", entry["message"])
			assert.Equal(t, "shot", entry["type"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "error", errors.New("bad payload"), "took", 1500*time.Millisecond, "seq", 7)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "bad payload", entry["error"])
	assert.Equal(t, "1.5s", entry["took"])
	assert.Equal(t, float64(7), entry["seq"])
}

func TestDispatcherLogger_LevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestToFields_OddAndNonStringKeys(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "b", "dangling"})
	assert.Equal(t, map[string]any{"a": 1}, fields)
}
