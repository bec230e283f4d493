package room

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// handleSignal consumes one inbox message. The inbox adapter has already
// deleted it, so whatever happens here the message is gone: any processing
// error is logged and the message discarded. One malformed or late signal
// must never take down the inbox subscription or another session.
func (c *Coordinator) handleSignal(msg domain.SignalMessage, screenInbox bool) {
	c.dispatch(func() {
		if err := c.processSignalLocked(msg, screenInbox); err != nil {
			log.Warn().
				Err(err).
				Str("module", "room").
				Str("kind", string(msg.Kind)).
				Str("sender", msg.SenderID).
				Msg("signal dropped")
		}
	})
}

func (c *Coordinator) processSignalLocked(msg domain.SignalMessage, screenInbox bool) error {
	key, replyTo := routeSignal(msg.SenderID, screenInbox)
	switch msg.Kind {
	case domain.SignalOffer:
		return c.applyOfferLocked(key, replyTo, screenInbox, msg)
	case domain.SignalAnswer:
		return c.applyAnswerLocked(key, msg)
	case domain.SignalCandidate:
		return c.applyCandidateLocked(key, msg)
	default:
		return fmt.Errorf("unknown signal kind %q", msg.Kind)
	}
}

// routeSignal maps a message's sender onto the session key it belongs to and
// the inbox replies should go to.
//
// On the screen inbox the sender is a viewer requesting our broadcast: the
// session is "<viewer>_viewer" and replies go to the viewer's camera inbox.
// On the camera inbox a "_screen"-tagged sender is a sharer answering our
// watch request: the session is "<sharer>_screen" and nothing is ever sent
// back on that leg. A plain sender is the camera mesh itself.
func routeSignal(senderID string, screenInbox bool) (key, replyTo string) {
	if screenInbox {
		return viewerKey(senderID), senderID
	}
	if strings.HasSuffix(senderID, domain.ScreenSuffix) {
		base := strings.TrimSuffix(senderID, domain.ScreenSuffix)
		return base + domain.ScreenSuffix, ""
	}
	return senderID, senderID
}

// applyOfferLocked is the responder leg of the state machine. A missing
// session is created on demand; a session already carrying a pending local
// offer (glare the id election could not prevent) rolls it back before
// accepting the remote one. Either way an answer goes back immediately.
func (c *Coordinator) applyOfferLocked(key, replyTo string, screenInbox bool, msg domain.SignalMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(msg.Payload, &offer); err != nil {
		return fmt.Errorf("offer payload: %w", err)
	}

	// A viewer's offer is answered with the running capture; a camera offer
	// with the local camera stream (possibly nil, tracks can be added later).
	out := c.local
	if screenInbox {
		out = c.screen
	}
	s, err := c.createSession(key, replyTo, out)
	if err != nil {
		return err
	}

	if s.tp.SignalingState() != webrtc.SignalingStateStable {
		log.Info().Str("module", "room").Str("session", key).Msg("glare, rolling back local offer")
		if err := s.tp.Rollback(); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	if err := s.tp.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := s.tp.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.tp.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}

	senderID := string(c.selfID)
	if screenInbox {
		senderID = c.selfID.ScreenInbox()
	}
	return c.pushSignal(replyTo, domain.SignalAnswer, answer, senderID)
}

// applyAnswerLocked applies an answer only to a session still waiting for
// one. Duplicate or late answers after the session converged or closed are
// silently ignored.
func (c *Coordinator) applyAnswerLocked(key string, msg domain.SignalMessage) error {
	s, ok := c.sessions[key]
	if !ok || s.tp.SignalingState() == webrtc.SignalingStateStable {
		log.Debug().Str("module", "room").Str("session", key).Msg("stale answer ignored")
		return nil
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(msg.Payload, &answer); err != nil {
		return fmt.Errorf("answer payload: %w", err)
	}
	if err := s.tp.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// applyCandidateLocked applies a candidate only once the session has a
// remote description. An early candidate is a no-op: the transport's own
// gathering keeps producing replacements, dropping one cannot strand the
// session.
func (c *Coordinator) applyCandidateLocked(key string, msg domain.SignalMessage) error {
	s, ok := c.sessions[key]
	if !ok || !s.tp.HasRemoteDescription() {
		log.Debug().Str("module", "room").Str("session", key).Msg("early candidate dropped")
		return nil
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.Payload, &ci); err != nil {
		return fmt.Errorf("candidate payload: %w", err)
	}
	if err := s.tp.AddICECandidate(ci); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}
