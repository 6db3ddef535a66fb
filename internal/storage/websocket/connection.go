package websocket

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/OCAP2/arena/pkg/protocol"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection owns one websocket to the spectator server with a single writer.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan string
	done   chan struct{}
	closed bool

	codec   protocol.Codec
	wsURL   string
	token   string
	backoff time.Duration

	// start frame replayed after a reconnect
	startFrame []byte

	logger *slog.Logger
}

func newConnection(codec protocol.Codec, logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan string, ackChSize),
		done:    make(chan struct{}),
		codec:   codec,
		backoff: time.Second,
		logger:  logger,
	}
}

func (c *connection) messageType() int {
	if c.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

// dial connects and starts the read and write loops.
func (c *connection) dial(rawURL, token string) error {
	c.wsURL = rawURL
	c.token = token

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.start(conn)
	return nil
}

// start runs the loops for conn. The writer exits once the reader sees conn fail.
func (c *connection) start(conn *ws.Conn) {
	dead := make(chan struct{})
	go c.writeLoop(conn, dead)
	go c.readLoop(conn, dead)
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh into conn until shutdown, a write error or dead.
func (c *connection) writeLoop(conn *ws.Conn, dead <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-dead:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Stream SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(c.messageType(), data); err != nil {
				c.logger.Warn("Stream write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh and ignores anything else.
func (c *connection) readLoop(conn *ws.Conn, dead chan<- struct{}) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			close(dead)
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Stream read error", "error", err)
			go c.reconnect(conn)
			return
		}

		env, err := c.codec.DecodeEnvelope(frame)
		if err != nil || env.Type != TypeAck {
			continue
		}
		ack, err := protocol.Decode[Ack](c.codec, env)
		if err != nil {
			c.logger.Debug("Malformed ack", "error", err)
			continue
		}
		select {
		case c.ackCh <- ack.For:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces a failed conn with backoff and replays the start frame.
// Both loops may report the same failure; only the first one reconnects.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting stream", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		start := c.startFrame
		c.mu.Unlock()

		if start != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(c.messageType(), start); err != nil {
				c.logger.Warn("Failed to replay stream start", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Stream reconnected", "attempt", attempt)
		c.start(conn)
		return
	}

	c.logger.Error("Stream reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send queues a frame. Frames are dropped when the queue is full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("Stream send channel full, dropping message")
	}
}

// sendAndWait queues a frame and blocks until the server acks msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case got := <-c.ackCh:
			if got == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
		}
	}
}

// close sends a close frame and stops all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
