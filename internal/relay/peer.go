package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/arena/internal/channel"
	"github.com/OCAP2/arena/pkg/protocol"

	ws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	peerSendSize = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	readLimit    = 1 << 20
)

// peer is one client connection. Only its write loop touches the socket for
// writing; the room hands it frames through out.
type peer struct {
	id    string
	conn  *ws.Conn
	codec protocol.Codec
	out   channel.Channel[[]byte]
	chat  *rate.Limiter
	room  *Room // owned by the read loop
	log   *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(conn *ws.Conn, codec protocol.Codec, chat *rate.Limiter, log *slog.Logger) *peer {
	return &peer{
		conn:  conn,
		codec: codec,
		out:   channel.New[[]byte](peerSendSize),
		chat:  chat,
		log:   log,
		done:  make(chan struct{}),
	}
}

func (p *peer) messageType() int {
	if p.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

// send queues a frame. A peer that cannot keep up is disconnected.
func (p *peer) send(frame []byte) {
	select {
	case <-p.done:
		return
	default:
	}
	if !p.out.TrySend(frame) {
		p.log.Warn("Peer send queue full, disconnecting", "player", p.id)
		p.close()
	}
}

func (p *peer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			_ = p.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case frame := <-p.out.Receive():
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(p.messageType(), frame); err != nil {
				p.log.Debug("Peer write failed", "player", p.id, "error", err)
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				p.close()
				return
			}
		}
	}
}

// close stops the write loop; the read loop then fails and leaves the room.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		// unblock the reader
		_ = p.conn.SetReadDeadline(time.Now())
	})
}
