// Package hub is the in-memory rendezvous service: per-room keyed tables
// with last-write-wins puts and full-snapshot fan-out, per-recipient signal
// inboxes with explicit per-message delete, and per-connection guards that
// clean up after a dropped client (the dead-man's switch).
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/rendezvous"
	"github.com/dkeye/Meet/internal/domain"
)

type inboxItem struct {
	id  string
	msg domain.SignalMessage
}

// roomState owns one room's directory tables and inboxes. All access goes
// through its mutex; fan-out uses the connections' non-blocking send.
type roomState struct {
	mu        sync.RWMutex
	name      string
	tables    map[string]map[string]json.RawMessage
	inboxes   map[string][]inboxItem
	watchers  map[string]map[*Conn]struct{}
	listeners map[string]*Conn
}

func newRoomState(name string) *roomState {
	return &roomState{
		name:      name,
		tables:    make(map[string]map[string]json.RawMessage),
		inboxes:   make(map[string][]inboxItem),
		watchers:  make(map[string]map[*Conn]struct{}),
		listeners: make(map[string]*Conn),
	}
}

// put stores a record under (table, key), last write wins, and fans the full
// table out to every watcher.
func (r *roomState) put(table, key string, record json.RawMessage) {
	r.mu.Lock()
	t, ok := r.tables[table]
	if !ok {
		t = make(map[string]json.RawMessage)
		r.tables[table] = t
	}
	t[key] = record
	frame, conns := r.snapshotLocked(table)
	r.mu.Unlock()
	deliver(frame, conns)
}

func (r *roomState) delete(table, key string) {
	r.mu.Lock()
	if t, ok := r.tables[table]; ok {
		delete(t, key)
	}
	frame, conns := r.snapshotLocked(table)
	r.mu.Unlock()
	deliver(frame, conns)
}

// watch subscribes conn to a table and immediately sends it the current
// snapshot so a late joiner starts from complete state.
func (r *roomState) watch(conn *Conn, table string) {
	r.mu.Lock()
	set, ok := r.watchers[table]
	if !ok {
		set = make(map[*Conn]struct{})
		r.watchers[table] = set
	}
	set[conn] = struct{}{}
	frame, _ := r.snapshotLocked(table)
	r.mu.Unlock()
	conn.trySend(frame)
}

// push appends a message to an inbox and delivers it to the inbox's
// listener, if any. The item stays queued until acked.
func (r *roomState) push(inbox string, msg domain.SignalMessage) {
	item := inboxItem{id: uuid.NewString(), msg: msg}
	r.mu.Lock()
	r.inboxes[inbox] = append(r.inboxes[inbox], item)
	listener := r.listeners[inbox]
	r.mu.Unlock()
	if listener != nil {
		listener.trySend(inboxFrame(inbox, item))
	}
}

// listen binds conn as the inbox's consumer and replays the backlog in
// arrival order.
func (r *roomState) listen(conn *Conn, inbox string) {
	r.mu.Lock()
	r.listeners[inbox] = conn
	backlog := make([]inboxItem, len(r.inboxes[inbox]))
	copy(backlog, r.inboxes[inbox])
	r.mu.Unlock()
	for _, item := range backlog {
		conn.trySend(inboxFrame(inbox, item))
	}
}

// ack deletes one consumed message.
func (r *roomState) ack(inbox, msgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.inboxes[inbox]
	for i, item := range items {
		if item.id == msgID {
			r.inboxes[inbox] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

func (r *roomState) purge(inbox string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inboxes, inbox)
	delete(r.listeners, inbox)
}

// detach removes every subscription conn holds. Guarded keys are handled by
// the connection's own close path.
func (r *roomState) detach(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.watchers {
		delete(set, conn)
	}
	for inbox, c := range r.listeners {
		if c == conn {
			delete(r.listeners, inbox)
		}
	}
}

func (r *roomState) empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tables {
		if len(t) > 0 {
			return false
		}
	}
	for _, set := range r.watchers {
		if len(set) > 0 {
			return false
		}
	}
	return len(r.listeners) == 0
}

// snapshotLocked builds the full-table frame and the watcher list under the
// caller-held lock.
func (r *roomState) snapshotLocked(table string) (rendezvous.Frame, []*Conn) {
	records := make(map[string]json.RawMessage, len(r.tables[table]))
	for k, v := range r.tables[table] {
		records[k] = v
	}
	frame := rendezvous.Frame{Op: rendezvous.OpSnapshot, Table: table, Records: records}
	conns := make([]*Conn, 0, len(r.watchers[table]))
	for conn := range r.watchers[table] {
		conns = append(conns, conn)
	}
	return frame, conns
}

func deliver(frame rendezvous.Frame, conns []*Conn) {
	for _, conn := range conns {
		conn.trySend(frame)
	}
}

func inboxFrame(inbox string, item inboxItem) rendezvous.Frame {
	m := item.msg
	return rendezvous.Frame{Op: rendezvous.OpInbox, Inbox: inbox, MsgID: item.id, Message: &m}
}

// Hub tracks rooms by name, creating on demand and dropping empty ones.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*roomState)}
}

func (h *Hub) getOrCreate(name string) *roomState {
	h.mu.RLock()
	room, ok := h.rooms[name]
	h.mu.RUnlock()
	if ok {
		return room
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok = h.rooms[name]; ok {
		return room
	}
	room = newRoomState(name)
	h.rooms[name] = room
	log.Info().Str("module", "hub").Str("room", name).Msg("room created")
	return room
}

func (h *Hub) release(room *roomState) {
	if room == nil || !room.empty() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.rooms[room.name]; ok && cur == room && room.empty() {
		delete(h.rooms, room.name)
		log.Info().Str("module", "hub").Str("room", room.name).Msg("room dropped")
	}
}

// RoomCount is exposed for the status endpoint.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
