package room

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

// session is one negotiated media session. Its lifetime is exactly the
// presence of its key in Coordinator.sessions; a negotiation step that
// resolves after removal must check the registry before acting. The key is
// kept as a plain value for self-deregistration, it is not an ownership
// edge.
type session struct {
	key string
	// replyTo is the counterpart inbox for answers and candidates. Empty on
	// the rare leg that never replies (a screen-watch key materialized from
	// a sharer-tagged message).
	replyTo string
	tp      core.Transport
	remote  *core.RemoteStream
}

// createSession returns the session registered under key, creating it when
// absent. Idempotent: a directory reconciliation and an inbound offer racing
// to the same key share one transport instead of duplicating it.
func (c *Coordinator) createSession(key, replyTo string, out *media.LocalStream) (*session, error) {
	if s, ok := c.sessions[key]; ok {
		return s, nil
	}
	tp, err := c.transports.NewTransport()
	if err != nil {
		return nil, fmt.Errorf("new transport for %s: %w", key, err)
	}
	s := &session{key: key, replyTo: replyTo, tp: tp}
	c.sessions[key] = s

	if out != nil {
		for _, track := range out.Tracks() {
			if err := tp.AddTrack(track); err != nil {
				log.Warn().Err(err).Str("module", "room").Str("session", key).Msg("add track")
			}
		}
	}

	senderID := c.candidateSenderID(key)
	tp.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		c.forwardCandidate(key, replyTo, senderID, ci)
	})
	tp.OnTrack(func(rt core.RemoteTrack) {
		c.onRemoteTrack(key, rt)
	})
	tp.OnDisconnected(func() {
		c.onTransportGone(key)
	})

	log.Info().Str("module", "room").Str("session", key).Msg("session created")
	return s, nil
}

// candidateSenderID tags outgoing candidates so the recipient can address
// replies: the sharer's viewer legs speak as "<self>_screen", everything
// else as the plain id.
func (c *Coordinator) candidateSenderID(key string) string {
	if isViewerKey(key) {
		return c.selfID.ScreenInbox()
	}
	return string(c.selfID)
}

func (c *Coordinator) forwardCandidate(key, replyTo, senderID string, ci webrtc.ICECandidateInit) {
	if replyTo == "" {
		return
	}
	c.mu.Lock()
	_, alive := c.sessions[key]
	closed := c.closed
	ctx := c.ctx
	name := c.displayName
	c.mu.Unlock()
	if !alive || closed {
		return
	}
	payload, err := json.Marshal(ci)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("session", key).Msg("candidate marshal")
		return
	}
	msg := domain.SignalMessage{
		Kind:       domain.SignalCandidate,
		Payload:    payload,
		SenderID:   senderID,
		SenderName: name,
	}
	if err := c.mbox.Send(ctx, replyTo, msg); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("session", key).Msg("candidate send")
	}
}

func (c *Coordinator) onRemoteTrack(key string, rt core.RemoteTrack) {
	c.dispatch(func() {
		s, ok := c.sessions[key]
		if !ok {
			return
		}
		if s.remote == nil {
			s.remote = core.NewRemoteStream(rt.StreamID())
		}
		s.remote.AddTrack(rt)
		log.Info().
			Str("module", "room").
			Str("session", key).
			Str("kind", rt.Kind().String()).
			Msg("remote track")
	})
}

// onTransportGone handles a terminal transport state: only the affected
// session is closed, every other session and the view stay functional.
func (c *Coordinator) onTransportGone(key string) {
	c.dispatch(func() {
		if _, ok := c.sessions[key]; !ok {
			return
		}
		log.Info().Str("module", "room").Str("session", key).Msg("transport gone")
		c.closeSessionLocked(key)
	})
}

func (c *Coordinator) closeSessionLocked(key string) {
	s, ok := c.sessions[key]
	if !ok {
		return
	}
	delete(c.sessions, key)
	if err := s.tp.Close(); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("session", key).Msg("transport close")
	}
}

// pushSignal marshals payload and appends it to the counterpart inbox.
func (c *Coordinator) pushSignal(inbox string, kind domain.SignalKind, payload any, senderID string) error {
	if inbox == "" {
		return fmt.Errorf("no reply target for %s", kind)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s payload: %w", kind, err)
	}
	msg := domain.SignalMessage{
		Kind:       kind,
		Payload:    b,
		SenderID:   senderID,
		SenderName: c.displayName,
	}
	return c.mbox.Send(c.ctx, inbox, msg)
}

// sendOfferLocked runs the initiator leg of the state machine: create the
// offer, pend it locally, push it to the peer.
func (c *Coordinator) sendOfferLocked(s *session, senderID string) error {
	offer, err := s.tp.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.tp.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	return c.pushSignal(s.replyTo, domain.SignalOffer, offer, senderID)
}
