package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/logging"
	intOtel "github.com/OCAP2/arena/internal/otel"
	"github.com/OCAP2/arena/internal/session"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// activeSession feeds the log context; it is set once the session exists.
var activeSession atomic.Pointer[session.Session]

func logContext() []slog.Attr {
	if s := activeSession.Load(); s != nil {
		return s.LogContext()
	}
	return nil
}

// loggers bundles the log sinks of one client run.
type loggers struct {
	slog    *logging.SlogManager
	log     *slog.Logger
	db      zerolog.Logger
	otel    *intOtel.Provider
	file    *os.File
	logPath string
}

func (l *loggers) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

// setupLogging opens the session log file, the optional Graylog writer and the
// optional OTel provider, then wires slog and zerolog to them.
func setupLogging(appName string, start time.Time, level string, resource map[string]string) (*loggers, error) {
	l := &loggers{slog: logging.NewSlogManager()}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	l.logPath = logging.LogFilePath(logsDir, appName, start)
	if _, err := os.Stat(l.logPath); err == nil {
		_ = os.Rename(l.logPath, l.logPath+".old")
	}
	file, err := os.OpenFile(l.logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", l.logPath, err)
	}
	l.file = file

	var graylog io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, appName)
		if err != nil {
			return nil, err
		}
		graylog = w
	}

	otelCfg := config.GetOTelConfig()
	l.otel, err = intOtel.New(otelConfig(otelCfg, file, resource))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel provider: %w", err)
	}
	var provider *sdklog.LoggerProvider
	if l.otel.Enabled() {
		provider = l.otel.LoggerProvider()
	}

	l.slog.Setup(logging.Options{
		File:        file,
		Level:       level,
		Provider:    provider,
		Graylog:     graylog,
		Context:     logContext,
		ServiceName: otelCfg.ServiceName,
	})
	l.log = l.slog.Logger()

	l.db = logging.NewZerolog(file, level, graylog, func(e *zerolog.Event) {
		for _, a := range logContext() {
			e.Str(a.Key, a.Value.String())
		}
	})

	l.log.Info("Logging to file", "path", l.logPath, "otel", l.otel.Enabled(), "graylog", graylog != nil)
	return l, nil
}

func otelConfig(c config.OTelConfig, file io.Writer, resource map[string]string) intOtel.Config {
	cfg := intOtel.Config{
		Attributes:   resource,
		Enabled:      c.Enabled,
		ServiceName:  c.ServiceName,
		BatchTimeout: c.BatchTimeout,
		LogWriter:    file,
		Endpoint:     c.Endpoint,
		Insecure:     c.Insecure,
	}
	if c.Metrics {
		cfg.MetricWriter = file
	}
	return cfg
}
