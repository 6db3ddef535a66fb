package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLevel converts a config level string to a zerolog level.
func ZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the zerolog logger used by the dispatcher, database and
// influx managers. Console and file get human-readable output; graylog, when
// set, gets the raw JSON events. hook may add runtime fields to every event.
func NewZerolog(file io.Writer, level string, graylog io.Writer, hook func(e *zerolog.Event)) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	} else {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        osStdout,
			TimeFormat: time.RFC3339,
		})
	}
	if graylog != nil {
		writers = append(writers, graylog)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ZerologLevel(level)).
		With().Timestamp().Logger()

	if hook != nil {
		logger = logger.Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			hook(e)
		}))
	}
	return logger
}
