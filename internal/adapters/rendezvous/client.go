package rendezvous

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Client is one websocket connection to the rendezvous hub, bound to a room
// and a client id by the hello frame. Snapshot and inbox delivery runs on
// the read-pump goroutine, never inside Watch/Listen calls.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	watchers  map[string]func(map[string]json.RawMessage)
	listeners map[string]func(domain.SignalMessage)
	closed    bool

	done   chan struct{}
	onDown func(error)
}

// Dial connects and announces (room, client). The server replays current
// table snapshots once the matching watch ops arrive.
func Dial(ctx context.Context, url string, room domain.RoomName, client domain.ClientID) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		watchers:  make(map[string]func(map[string]json.RawMessage)),
		listeners: make(map[string]func(domain.SignalMessage)),
		done:      make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	if err := c.enqueue(Frame{Op: OpHello, Room: string(room), Client: string(client)}); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// OnDisconnect registers a callback fired once when the connection dies.
func (c *Client) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	c.onDown = fn
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) enqueue(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "rendezvous").Msg("write")
				c.fail(err)
				return
			}
		}
	}
}

func (c *Client) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Error().Err(err).Str("module", "rendezvous").Msg("bad frame")
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f Frame) {
	switch f.Op {
	case OpSnapshot:
		c.mu.RLock()
		fn := c.watchers[f.Table]
		c.mu.RUnlock()
		if fn != nil {
			records := f.Records
			if records == nil {
				records = map[string]json.RawMessage{}
			}
			fn(records)
		}
	case OpInbox:
		if f.Message == nil {
			return
		}
		// Delete before processing: the ack removes the message server-side
		// so it can never be delivered twice.
		if err := c.enqueue(Frame{Op: OpAck, Inbox: f.Inbox, MsgID: f.MsgID}); err != nil {
			log.Warn().Err(err).Str("module", "rendezvous").Str("inbox", f.Inbox).Msg("ack")
		}
		c.mu.RLock()
		fn := c.listeners[f.Inbox]
		c.mu.RUnlock()
		if fn != nil {
			fn(*f.Message)
		}
	case OpError:
		log.Warn().Str("module", "rendezvous").Str("error", f.Error).Msg("server error")
	default:
		log.Warn().Str("module", "rendezvous").Str("op", f.Op).Msg("unknown frame")
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	fn := c.onDown
	c.onDown = nil
	alreadyClosed := c.closed
	c.mu.Unlock()
	if !alreadyClosed {
		log.Warn().Err(err).Str("module", "rendezvous").Msg("connection down")
	}
	_ = c.Close()
	if fn != nil && !alreadyClosed {
		fn(err)
	}
}

func (c *Client) watch(table string, fn func(map[string]json.RawMessage)) (func(), error) {
	c.mu.Lock()
	c.watchers[table] = fn
	c.mu.Unlock()
	if err := c.enqueue(Frame{Op: OpWatch, Table: table}); err != nil {
		return nil, err
	}
	return func() {
		c.mu.Lock()
		delete(c.watchers, table)
		c.mu.Unlock()
	}, nil
}
