package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OCAP2/arena/internal/api"
	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/dispatcher"
	"github.com/OCAP2/arena/internal/geo"
	"github.com/OCAP2/arena/internal/logging"
	"github.com/OCAP2/arena/internal/monitor"
	"github.com/OCAP2/arena/internal/session"
	"github.com/OCAP2/arena/internal/storage"
	"github.com/OCAP2/arena/internal/transport"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

func (c *runCmd) applyOverrides() {
	if c.Relay != "" {
		config.Set("relay.url", c.Relay)
	}
	if c.Codec != "" {
		config.Set("relay.codec", c.Codec)
	}
	if c.Storage != "" {
		config.Set("storage.type", c.Storage)
	}
}

func (c *runCmd) localPlayer() (core.PlayerState, error) {
	spawn, err := geo.ParseVec(c.Spawn)
	if err != nil {
		return core.PlayerState{}, fmt.Errorf("spawn %q: %w", c.Spawn, err)
	}
	name := c.Name
	if name == "" {
		name = c.Player
	}
	return core.NewPlayerState(c.Player, name, spawn, core.Stats{
		Speed:          c.Speed,
		ShootRange:     c.ShootRange,
		ShotsPerMinute: c.ShotsPerMinute,
		HitPower:       c.HitPower,
	}), nil
}

func (c *runCmd) run(level string) error {
	start := time.Now()
	c.applyOverrides()

	local, err := c.localPlayer()
	if err != nil {
		return err
	}
	var route []core.Vec2
	if c.Route != "" {
		if route, err = geo.ParseWaypoints(c.Route); err != nil {
			return err
		}
	}

	logs, err := setupLogging(appName, start, level, map[string]string{
		"arena.match":  c.Match,
		"arena.player": c.Player,
	})
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, logs.db, logger, config.GetString("logsDir"), start)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	relayCfg := config.GetRelayConfig()
	codec, err := protocol.CodecByName(relayCfg.Codec)
	if err != nil {
		return err
	}
	client, err := transport.Dial(ctx, transport.Options{
		URL:            relayCfg.URL,
		Token:          relayCfg.Token,
		Codec:          codec,
		SendBuffer:     relayCfg.SendBuffer,
		MaxReconnect:   relayCfg.MaxReconnect,
		InitialBackoff: relayCfg.InitialBackoff,
		MaxBackoff:     relayCfg.MaxBackoff,
		PongWait:       relayCfg.PongWait,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to reach relay at %s: %w", relayCfg.URL, err)
	}
	defer client.Close()

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logs.db))
	if err != nil {
		return err
	}

	obs := newLogObserver(logger, cancel)
	sim := config.GetSimConfig()
	s, err := session.New(session.Deps{
		MatchCode:  c.Match,
		Player:     local,
		Channel:    client,
		Codec:      client.Codec(),
		Dispatcher: disp,
		Backend:    backend,
		Observer:   obs,
		Logger:     logger,
		Sim:        sim,
		Meter:      logs.otel.Meter("github.com/OCAP2/arena/cmd/arena"),
	})
	if err != nil {
		return err
	}
	activeSession.Store(s)
	defer activeSession.Store(nil)

	if err := s.Enter(); err != nil {
		return err
	}
	status := monitor.NewService(monitor.Dependencies{
		Source: s.Summary,
		Match:  c.Match,
		Player: c.Player,
		Logger: logger,
		Path:   filepath.Join(config.GetString("logsDir"), "status.json"),
	})
	status.Start()

	b := newBot(s.Arena(), route, sim, c.Greeting)
	runErr := s.Run(ctx, b.Input)
	status.Stop()
	if err := s.Exit(); err != nil {
		logger.Error("Failed to leave match", "error", err)
	}

	switch {
	case errors.Is(runErr, session.ErrDisconnected):
		logger.Warn("Relay connection lost")
	case errors.Is(runErr, context.DeadlineExceeded):
		logger.Warn("Timed out before the match ended", "timeout", c.Timeout)
	}

	res, ended := s.Machine().Result()
	if ended && c.Publish {
		publish(logger, c.Match, s.Machine().Settings(), res, backend)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := logs.otel.Shutdown(flushCtx); err != nil {
		logger.Warn("Failed to flush telemetry", "error", err)
	}

	if errors.Is(runErr, session.ErrDisconnected) {
		return runErr
	}
	return nil
}

// publish posts the result and, when the sink wrote one, the exported file.
func publish(log *slog.Logger, code string, settings core.MatchSettings, res core.MatchResult, backend storage.Backend) {
	apiCfg := config.GetAPIConfig()
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		log.Error("Results server unreachable", "error", err)
		return
	}
	if err := client.PublishResult(code, res); err != nil {
		log.Error("Failed to publish result", "error", err)
		return
	}
	log.Info("Result published", "match", code)

	exp, ok := backend.(storage.Exportable)
	if !ok || exp.GetExportedFilePath() == "" {
		return
	}
	path := exp.GetExportedFilePath()
	err := client.Upload(path, api.UploadMetadata{
		MatchCode: code,
		MapID:     settings.MapID,
		Mode:      settings.Mode,
		Duration:  float64(settings.DurationSeconds),
		WinnerID:  res.WinnerID,
	})
	if err != nil {
		log.Error("Failed to upload match file", "path", path, "error", err)
		return
	}
	log.Info("Match file uploaded", "path", path)
}
