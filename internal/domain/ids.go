// Package domain contains entities without logic, just meta-data.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

type (
	RoomName string
	ClientID string
)

// Session key suffixes. A bare id is a camera-mesh session, "<id>_screen" is
// us watching that peer's screen, "<id>_viewer" is that peer watching ours.
const (
	ScreenSuffix = "_screen"
	ViewerSuffix = "_viewer"
)

// NewClientID generates an opaque participant id. Ids are only ever ordered
// by plain string comparison; the initiator election relies on that.
func NewClientID() ClientID {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ClientID("user_" + raw[:9])
}

// ScreenInbox names the signal queue of this client's screen broadcast.
func (id ClientID) ScreenInbox() string { return string(id) + ScreenSuffix }

// Inbox names the signal queue of this client's camera mesh.
func (id ClientID) Inbox() string { return string(id) }
