package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/rendezvous"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// guard is one dead-man's-switch registration: a record key or a whole
// inbox to wipe when this connection drops.
type guard struct {
	table string
	key   string
	inbox string
}

// Conn is one client connection. It is unbound until the hello frame names
// its room and client id.
type Conn struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	mu     sync.RWMutex
	room   *roomState
	client string
	guards []guard
	closed bool
}

func newConn(h *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		hub:  h,
		conn: ws,
		send: make(chan []byte, sendBuffer),
	}
}

func (c *Conn) trySend(f rendezvous.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("frame marshal")
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// A stalled client loses frames; the next snapshot resyncs it.
		log.Warn().Str("module", "hub").Str("client", c.client).Msg("send dropped")
	}
}

func (c *Conn) clientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		room := c.room
		guards := c.guards
		c.guards = nil
		c.mu.Unlock()

		if room != nil {
			c.fireGuards(room, guards)
			room.detach(c)
			c.hub.release(room)
		}
		_ = c.conn.Close()
		log.Info().Str("module", "hub").Str("client", c.clientID()).Msg("connection closed")
	})
}

// fireGuards runs the dead-man's switch: delete every guarded record (which
// fans the shrunken tables out) and drop every guarded inbox.
func (c *Conn) fireGuards(room *roomState, guards []guard) {
	for _, g := range guards {
		switch {
		case g.inbox != "":
			room.purge(g.inbox)
		case g.table != "":
			room.delete(g.table, g.key)
		}
	}
	if len(guards) > 0 {
		log.Info().Str("module", "hub").Str("client", c.clientID()).Int("guards", len(guards)).Msg("guards fired")
	}
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "hub").Msg("write")
				return
			}
		}
	}
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "hub").Str("client", c.clientID()).Msg("read")
				}
				return
			}
			var f rendezvous.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Error().Err(err).Str("module", "hub").Msg("bad frame")
				continue
			}
			c.handleFrame(f)
		}
	}
}
