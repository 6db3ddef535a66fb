// Package relay is a development relay: it fans client messages out to the other
// participants of a match, runs the match clock and keeps the tally.
package relay

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/OCAP2/arena/internal/config"
	"github.com/OCAP2/arena/pkg/protocol"

	ws "github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"
)

// PointsPerKill is the score awarded for an elimination.
const PointsPerKill = 10

// Config holds the relay rules.
type Config struct {
	MinPlayers   int
	Duration     time.Duration
	RespawnDelay time.Duration
	// RejoinGrace is how long a dropped player keeps its place in a running match.
	RejoinGrace   time.Duration
	ChatPerSecond float64
	ChatBurst     int
	MapID         string
	Token         string
	// TimerInterval is the length of one countdown second. Tests shorten it.
	TimerInterval time.Duration
}

// FromConfig converts the viper-backed server settings.
func FromConfig(c config.RelayServerConfig) Config {
	return Config{
		MinPlayers:    c.MinPlayers,
		Duration:      c.Duration,
		RespawnDelay:  c.RespawnDelay,
		RejoinGrace:   c.RejoinGrace,
		ChatPerSecond: c.ChatPerSecond,
		ChatBurst:     c.ChatBurst,
		MapID:         c.MapID,
		Token:         c.Token,
	}
}

func (c Config) withDefaults() Config {
	if c.MinPlayers < 2 {
		c.MinPlayers = 2
	}
	if c.Duration < time.Second {
		c.Duration = 3 * time.Minute
	}
	if c.RespawnDelay <= 0 {
		c.RespawnDelay = 3 * time.Second
	}
	if c.RejoinGrace <= 0 {
		c.RejoinGrace = 200 * time.Second
	}
	if c.ChatPerSecond <= 0 {
		c.ChatPerSecond = 2
	}
	if c.ChatBurst <= 0 {
		c.ChatBurst = 5
	}
	if c.MapID == "" {
		c.MapID = "dunes"
	}
	if c.TimerInterval <= 0 {
		c.TimerInterval = time.Second
	}
	return c
}

// RoomInfo describes a live room.
type RoomInfo struct {
	Code    string `json:"code"`
	Players int    `json:"players"`
}

// Hub upgrades websocket requests and routes each peer to its match room.
type Hub struct {
	cfg      Config
	log      *slog.Logger
	upgrader ws.Upgrader

	mu    deadlock.Mutex
	rooms map[string]*Room
}

// NewHub creates a relay hub. A nil logger uses slog.Default.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:      cfg.withDefaults(),
		log:      logger.With("component", "relay"),
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		rooms:    make(map[string]*Room),
	}
}

// ServeHTTP accepts one client. The codec comes from the codec query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.cfg.Token != "" && q.Get("token") != h.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	codec, err := protocol.CodecByName(q.Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "error", err)
		return
	}

	chat := rate.NewLimiter(rate.Limit(h.cfg.ChatPerSecond), h.cfg.ChatBurst)
	p := newPeer(conn, codec, chat, h.log)
	go p.writeLoop()
	h.readLoop(p)
}

// readLoop feeds the peer's messages to its room. The first message must be a
// joinMatch; anything before it is dropped.
func (h *Hub) readLoop(p *peer) {
	defer func() {
		if p.room != nil {
			p.room.post(leave{peer: p})
		}
		p.close()
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(readLimit)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := p.codec.DecodeEnvelope(frame)
		if err != nil {
			h.log.Debug("Dropping malformed frame", "error", err)
			continue
		}

		if p.room == nil {
			if env.Type != protocol.TypeJoinMatch {
				continue
			}
			join, err := protocol.Decode[protocol.JoinMatch](p.codec, env)
			if err != nil {
				h.log.Debug("Invalid join", "error", err)
				continue
			}
			p.id = join.PlayerID
			p.room = h.room(join.MatchCode)
			p.room.post(joinCmd{peer: p, msg: join})
			continue
		}
		// a replayed join after reconnect is a no-op on the same socket
		if env.Type == protocol.TypeJoinMatch {
			continue
		}
		p.room.post(message{peer: p, env: env})
	}
}

// room returns the room for code, starting it on first use.
func (h *Hub) room(code string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok {
		return r
	}
	r := newRoom(code, h.cfg, h.log)
	r.onEmpty = h.removeRoom
	h.rooms[code] = r
	go r.Run()
	h.log.Info("Room opened", "match", code)
	return r
}

func (h *Hub) removeRoom(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok {
		r.Stop()
		delete(h.rooms, code)
		h.log.Info("Room closed", "match", code)
	}
}

// Rooms lists the live rooms ordered by code.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for code, r := range h.rooms {
		out = append(out, RoomInfo{Code: code, Players: r.NumPlayers()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Close stops every room.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, r := range h.rooms {
		r.Stop()
		delete(h.rooms, code)
	}
}
