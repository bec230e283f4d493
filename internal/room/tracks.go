package room

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

// syncTracksLocked reconciles the current camera stream into every live
// camera-mesh session. Screen sessions are never touched here.
func (c *Coordinator) syncTracksLocked() {
	for key, s := range c.sessions {
		if !isCameraKey(key) {
			continue
		}
		c.syncSessionTracksLocked(s)
	}
}

// syncSessionTracksLocked updates one session in place. For every channel
// the session already negotiated: swap the outgoing track when a fresh one
// of that kind exists, null it when the kind went away, both without
// renegotiation, so the remote side keeps a live channel carrying
// silence/blank frames instead of a teardown. Only a kind the session never
// had (e.g. the camera permission arrived late) needs a fresh offer, and
// that is attempted only against a stable session.
func (c *Coordinator) syncSessionTracksLocked(s *session) {
	trans := s.tp.Transceivers()
	for _, tr := range trans {
		var want webrtc.TrackLocal
		if c.local != nil {
			want = c.local.Track(tr.Kind())
		}
		cur := tr.SenderTrack()
		switch {
		case want != nil && (cur == nil || cur.ID() != want.ID()):
			if err := tr.ReplaceSenderTrack(want); err != nil {
				log.Warn().Err(err).Str("module", "room").Str("session", s.key).
					Str("kind", tr.Kind().String()).Msg("replace track")
			}
		case want == nil && cur != nil:
			if err := tr.ReplaceSenderTrack(nil); err != nil {
				log.Warn().Err(err).Str("module", "room").Str("session", s.key).
					Str("kind", tr.Kind().String()).Msg("null track")
			}
		}
	}

	if c.local == nil {
		return
	}
	for _, track := range c.local.Tracks() {
		if hasTransceiverKind(trans, track.Kind()) {
			continue
		}
		if s.tp.SignalingState() != webrtc.SignalingStateStable {
			// Never renegotiate against a session mid-negotiation.
			continue
		}
		if err := s.tp.AddTrack(track); err != nil {
			log.Warn().Err(err).Str("module", "room").Str("session", s.key).
				Str("kind", track.Kind().String()).Msg("add track")
			continue
		}
		log.Info().Str("module", "room").Str("session", s.key).
			Str("kind", track.Kind().String()).Msg("new kind, renegotiating")
		if err := c.sendOfferLocked(s, string(c.selfID)); err != nil {
			log.Error().Err(err).Str("module", "room").Str("session", s.key).Msg("renegotiation offer")
		}
	}
}

func hasTransceiverKind(trans []core.Transceiver, kind webrtc.RTPCodecType) bool {
	for _, t := range trans {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}
