// Package websocket streams match events live to a spectator server.
package websocket

import (
	"log/slog"

	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

// Config holds stream backend configuration.
type Config struct {
	URL   string
	Token string
	Codec protocol.Codec
}

// Backend streams match data to a spectator server. Start and end block
// until the server acks; everything in between is fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a stream backend. A nil codec means JSON.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSON{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(cfg.Codec, logger.With("component", "storage.websocket")),
		cfg:  cfg,
	}
}

// Init connects to the spectator server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Token)
}

// Close disconnects from the spectator server.
func (b *Backend) Close() error {
	return b.conn.close()
}

func (b *Backend) emit(msgType string, payload any) error {
	frame, err := b.cfg.Codec.Encode(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(frame)
	return nil
}

// StartMatch opens the stream and waits for the ack. The frame is kept for
// replay after a reconnect.
func (b *Backend) StartMatch(info *core.MatchInfo) error {
	frame, err := b.cfg.Codec.Encode(TypeStreamStart, StartPayload{
		Code:      info.Code,
		Settings:  info.Settings,
		LocalID:   info.LocalID,
		StartTime: info.StartTime.UnixMilli(),
		Players:   info.Players,
	})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.startFrame = frame
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(frame, TypeStreamStart, ackTimeout)
}

// EndMatch sends the result and waits for the ack.
func (b *Backend) EndMatch(result core.MatchResult) error {
	frame, err := b.cfg.Codec.Encode(TypeStreamEnd, EndPayload{Result: result})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(frame, TypeStreamEnd, ackTimeout)

	// the match is over whether or not the server answered
	b.conn.mu.Lock()
	b.conn.startFrame = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordShot(e *core.ShotEvent) error {
	return b.emit(TypeStreamShot, ShotPayload{
		ShooterID: e.ShooterID,
		Time:      e.Time.UnixMilli(),
		Origin:    e.Origin,
		Target:    e.Target,
		Damage:    e.Damage,
		Cosmetic:  e.Cosmetic,
	})
}

func (b *Backend) RecordHit(e *core.HitEvent) error {
	return b.emit(TypeStreamHit, HitPayload{
		ShooterID: e.ShooterID,
		VictimID:  e.VictimID,
		Time:      e.Time.UnixMilli(),
		Damage:    e.Damage,
		Health:    e.Health,
		Position:  e.Position,
	})
}

func (b *Backend) RecordElimination(e *core.EliminationEvent) error {
	return b.emit(TypeStreamElimination, EliminationPayload{
		PlayerID: e.PlayerID,
		KillerID: e.KillerID,
		Time:     e.Time.UnixMilli(),
		Position: e.Position,
	})
}

func (b *Backend) RecordRespawn(e *core.RespawnEvent) error {
	return b.emit(TypeStreamRespawn, RespawnPayload{
		PlayerID: e.PlayerID,
		Health:   e.Health,
		Time:     e.Time.UnixMilli(),
		Position: e.Position,
	})
}

func (b *Backend) RecordChat(e *core.ChatEvent) error {
	return b.emit(TypeStreamChat, ChatPayload{
		SenderID: e.SenderID,
		Text:     e.Text,
		Time:     e.Time.UnixMilli(),
	})
}
