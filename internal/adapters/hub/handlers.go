package hub

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/rendezvous"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades one rendezvous connection and starts its pumps. The
// context is the server's lifetime, not the request's: net/http cancels the
// request context as soon as this handler returns. The connection stays
// unbound until its hello frame.
func (h *Hub) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("ws upgrade")
		return
	}
	conn := newConn(h, ws)
	go conn.writePump(ctx)
	go conn.readPump(ctx)
}

func (c *Conn) handleFrame(f rendezvous.Frame) {
	if f.Op == rendezvous.OpHello {
		c.handleHello(f)
		return
	}

	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == nil {
		c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "hello required"})
		return
	}

	switch f.Op {
	case rendezvous.OpPut:
		if f.Table == "" || f.Key == "" {
			c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "bad put"})
			return
		}
		room.put(f.Table, f.Key, f.Record)
	case rendezvous.OpDelete:
		room.delete(f.Table, f.Key)
	case rendezvous.OpWatch:
		room.watch(c, f.Table)
	case rendezvous.OpGuard:
		c.addGuard(f)
	case rendezvous.OpPush:
		if f.Inbox == "" || f.Message == nil {
			c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "bad push"})
			return
		}
		room.push(f.Inbox, *f.Message)
	case rendezvous.OpListen:
		room.listen(c, f.Inbox)
	case rendezvous.OpAck:
		room.ack(f.Inbox, f.MsgID)
	case rendezvous.OpPurge:
		room.purge(f.Inbox)
	default:
		log.Warn().Str("module", "hub").Str("op", f.Op).Msg("unknown op")
		c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "unknown op"})
	}
}

func (c *Conn) handleHello(f rendezvous.Frame) {
	if f.Room == "" || f.Client == "" {
		c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "bad hello"})
		return
	}
	room := c.hub.getOrCreate(f.Room)
	c.mu.Lock()
	c.room = room
	c.client = f.Client
	c.mu.Unlock()
	log.Info().Str("module", "hub").Str("room", f.Room).Str("client", f.Client).Msg("hello")
}

func (c *Conn) addGuard(f rendezvous.Frame) {
	g := guard{table: f.Table, key: f.Key, inbox: f.Inbox}
	if g.inbox == "" && (g.table == "" || g.key == "") {
		c.trySend(rendezvous.Frame{Op: rendezvous.OpError, Error: "bad guard"})
		return
	}
	c.mu.Lock()
	c.guards = append(c.guards, g)
	c.mu.Unlock()
}
