// Command relay runs the development relay that arena clients connect to.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/internal/logging"
	"github.com/OCAP2/arena/internal/relay"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Config   string `help:"Directory containing arena.cfg.json." type:"path" default:"."`
	Listen   string `help:"Listen address, overrides server.listen."`
	Token    string `help:"Shared secret clients must present, overrides server.token."`
	Duration string `help:"Match length, overrides server.duration (e.g. 90s)."`
	Debug    bool   `help:"Whether to enable debug logging."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	kong.Parse(&CLI,
		kong.Name("relay"),
		kong.Description("development relay for arena matches"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if err := run(); err != nil {
		writeError(err)
	}
}

func run() error {
	if err := config.Load(CLI.Config); err != nil {
		// a missing file is fine, the defaults describe a local relay
		config.LoadDefaults()
	}
	if CLI.Listen != "" {
		config.Set("server.listen", CLI.Listen)
	}
	if CLI.Token != "" {
		config.Set("server.token", CLI.Token)
	}
	if CLI.Duration != "" {
		config.Set("server.duration", CLI.Duration)
	}
	level := config.GetString("logLevel")
	if CLI.Debug {
		level = "DEBUG"
	}

	opts := logging.Options{Level: level, ServiceName: "arena-relay"}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, "arena-relay")
		if err != nil {
			return err
		}
		opts.Graylog = w
	}
	slogManager := logging.NewSlogManager()
	slogManager.Setup(opts)
	logger := slogManager.Logger()

	serverCfg := config.GetRelayServerConfig()
	hub := relay.NewHub(relay.FromConfig(serverCfg), logger)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/rooms", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Rooms()); err != nil {
			logger.Debug("Failed to write room list", "error", err)
		}
	})
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              serverCfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Relay listening",
			slog.String("addr", serverCfg.Listen),
			slog.Int("minPlayers", serverCfg.MinPlayers),
			slog.Duration("duration", serverCfg.Duration))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
