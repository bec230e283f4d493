package domain

import "encoding/json"

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// SignalMessage travels through a per-recipient inbox. Each message is
// consumed at most once: the receiver deletes it from the inbox before
// processing, so redelivery never happens.
//
// SenderID is a string rather than a ClientID because a sharer replying on a
// viewer session tags messages with "<id>_screen" so the recipient can route
// the reply to the right session key.
type SignalMessage struct {
	Kind       SignalKind      `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	SenderID   string          `json:"senderId"`
	SenderName string          `json:"senderName,omitempty"`
}
