package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
)

// Directory is the room's shared presence table: keyed records with
// last-write-wins puts, continuous full-snapshot subscriptions, explicit
// delete and a dead-man's-switch guard that removes a key server-side when
// the registering connection drops.
//
// Watch callbacks are invoked from the adapter's delivery goroutine, never
// from inside the Watch call itself, and always carry the complete table.
type Directory interface {
	PutParticipant(ctx context.Context, rec domain.ParticipantRecord) error
	DeleteParticipant(ctx context.Context, id domain.ClientID) error
	GuardParticipant(ctx context.Context, id domain.ClientID) error
	WatchParticipants(fn func(map[domain.ClientID]domain.ParticipantRecord)) (stop func(), err error)

	PutScreenShare(ctx context.Context, rec domain.ScreenShareRecord) error
	DeleteScreenShare(ctx context.Context, id domain.ClientID) error
	GuardScreenShare(ctx context.Context, id domain.ClientID) error
	WatchScreenShares(fn func(map[domain.ClientID]domain.ScreenShareRecord)) (stop func(), err error)
}

// Mailbox is the append-only per-recipient signal queue. Listen delivers
// messages in arrival order from the adapter's delivery goroutine; every
// message is deleted from the inbox before fn runs, so it is consumed at
// most once. GuardInbox registers the same dead-man's-switch cleanup as the
// directory so a crashed sender's queue does not linger.
type Mailbox interface {
	Send(ctx context.Context, inbox string, msg domain.SignalMessage) error
	Listen(inbox string, fn func(domain.SignalMessage)) (stop func(), err error)
	Purge(ctx context.Context, inbox string) error
	GuardInbox(ctx context.Context, inbox string) error
}
