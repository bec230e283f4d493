// Package rendezvous speaks the room state-sync protocol: keyed
// last-write-wins tables with full-snapshot fan-out, per-recipient signal
// inboxes with delete-on-consume, and dead-man's-switch guards. The client
// side implements core.Directory and core.Mailbox; the hub package serves
// the same frames.
package rendezvous

import (
	"encoding/json"

	"github.com/dkeye/Meet/internal/domain"
)

// Frame is one wire message, client ops and server events share the shape.
type Frame struct {
	Op     string `json:"op"`
	Room   string `json:"room,omitempty"`
	Client string `json:"client,omitempty"`

	Table   string                     `json:"table,omitempty"`
	Key     string                     `json:"key,omitempty"`
	Record  json.RawMessage            `json:"record,omitempty"`
	Records map[string]json.RawMessage `json:"records,omitempty"`

	Inbox   string                `json:"inbox,omitempty"`
	MsgID   string                `json:"msgId,omitempty"`
	Message *domain.SignalMessage `json:"message,omitempty"`

	Error string `json:"error,omitempty"`
}

// Client → server ops.
const (
	OpHello  = "hello"
	OpPut    = "put"
	OpDelete = "delete"
	OpWatch  = "watch"
	OpGuard  = "guard"
	OpPush   = "push"
	OpListen = "listen"
	OpAck    = "ack"
	OpPurge  = "purge"
)

// Server → client events.
const (
	OpSnapshot = "snapshot"
	OpInbox    = "inbox"
	OpError    = "error"
)

const (
	TableParticipants = "participants"
	TableScreens      = "screens"
)
