// Package transport keeps the persistent relay connection of one client.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	"github.com/OCAP2/arena/internal/channel"
	"github.com/OCAP2/arena/pkg/protocol"
)

var (
	ErrClosed    = errors.New("connection closed")
	ErrQueueFull = errors.New("send queue full")
)

// Options configures a Client. Zero values fall back to DefaultOptions.
type Options struct {
	URL            string
	Token          string
	Codec          protocol.Codec
	SendBuffer     int
	InboundBuffer  int
	MaxReconnect   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	ReadLimit      int64
	Logger         *slog.Logger
}

// DefaultOptions returns the reference connection policy.
func DefaultOptions() Options {
	return Options{
		Codec:          protocol.JSON{},
		SendBuffer:     1024,
		InboundBuffer:  1024,
		MaxReconnect:   10,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		ReadLimit:      1 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Codec == nil {
		o.Codec = d.Codec
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = d.InboundBuffer
	}
	if o.MaxReconnect <= 0 {
		o.MaxReconnect = d.MaxReconnect
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client is one persistent websocket connection to the relay with a single
// write goroutine. A dropped connection is redialed with exponential backoff
// and the last joinMatch is replayed so the relay re-sends the match state.
type Client struct {
	opts    Options
	codec   protocol.Codec
	logger  *slog.Logger
	sendCh  channel.Channel[[]byte]
	inbound channel.Channel[protocol.Envelope]

	mu           deadlock.Mutex
	conn         *ws.Conn
	closed       bool
	reconnecting bool
	cachedJoin   []byte

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay and starts the read and write loops.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	c := &Client{
		opts:    opts,
		codec:   opts.Codec,
		logger:  opts.Logger.With("component", "transport"),
		sendCh:  channel.New[[]byte](opts.SendBuffer),
		inbound: channel.New[protocol.Envelope](opts.InboundBuffer),
		done:    make(chan struct{}),
	}

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return nil, err
	}
	c.start(conn)
	return c, nil
}

func (c *Client) dialOnce(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	q := u.Query()
	q.Set("codec", c.codec.Name())
	if c.opts.Token != "" {
		q.Set("token", c.opts.Token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}
	return conn, nil
}

func (c *Client) start(conn *ws.Conn) {
	conn.SetReadLimit(c.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := make(chan struct{})
	go c.writeLoop(conn, stop)
	go c.readLoop(conn, stop)
}

// Codec returns the wire codec in use.
func (c *Client) Codec() protocol.Codec { return c.codec }

// Inbound yields decoded envelopes from the relay.
func (c *Client) Inbound() <-chan protocol.Envelope { return c.inbound.Receive() }

// Done is closed once the client is closed or has given up reconnecting.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send encodes a message and queues it for the write loop without blocking.
// A joinMatch is remembered for replay after a reconnect.
func (c *Client) Send(msgType string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := c.codec.Encode(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	if msgType == protocol.TypeJoinMatch {
		c.mu.Lock()
		c.cachedJoin = data
		c.mu.Unlock()
	}

	if !c.sendCh.TrySend(data) {
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, msgType)
	}
	return nil
}

func (c *Client) messageType() int {
	if c.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

// writeLoop drains sendCh into conn and pings it. It exits when conn fails,
// is replaced, or the client shuts down.
func (c *Client) writeLoop(conn *ws.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.logger.Warn("Relay ping failed", "error", err)
				c.lost(conn, stop)
				return
			}
		case data := <-c.sendCh.Receive():
			if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Warn("Relay SetWriteDeadline error", "error", err)
				c.lost(conn, stop)
				return
			}
			if err := conn.WriteMessage(c.messageType(), data); err != nil {
				c.logger.Warn("Relay write error", "error", err)
				c.lost(conn, stop)
				return
			}
		}
	}
}

// readLoop decodes envelopes from conn. Malformed frames are logged and dropped.
func (c *Client) readLoop(conn *ws.Conn, stop chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-stop:
				return
			default:
			}
			c.logger.Warn("Relay read error", "error", err)
			c.lost(conn, stop)
			return
		}

		env, err := c.codec.DecodeEnvelope(message)
		if err != nil {
			c.logger.Debug("Dropping malformed frame", "error", err, "bytes", len(message))
			continue
		}
		if !c.inbound.SendUntil(env, c.done) {
			return
		}
	}
}

// lost stops the loops of a failed connection and starts a single reconnect.
// Both loops of a connection report it; only the first report for the
// current connection acts, so stop is closed once and a later report from a
// stale connection never touches its replacement.
func (c *Client) lost(conn *ws.Conn, stop chan struct{}) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	close(stop)
	go c.reconnect()
}

// reconnect redials with exponential backoff. On success it replays the cached
// joinMatch and restarts the loops; after the last attempt it closes Done.
func (c *Client) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := c.opts.InitialBackoff
	for attempt := 1; attempt <= c.opts.MaxReconnect; attempt++ {
		c.logger.Info("Reconnecting to relay", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteWait)
		conn, err := c.dialOnce(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
			continue
		}

		c.mu.Lock()
		cached := c.cachedJoin
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}

		// Replay joinMatch so the relay re-sends the match state.
		if cached != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := conn.WriteMessage(c.messageType(), cached); err != nil {
				c.logger.Warn("Failed to replay joinMatch after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Relay reconnected", "attempt", attempt)
		c.start(conn)
		return
	}

	c.logger.Error("Relay reconnect failed after max attempts", "maxAttempts", c.opts.MaxReconnect)
	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Close sends a close frame and stops every goroutine.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.shutdown()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}
