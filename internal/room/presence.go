package room

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// watchKinds declares the channels of a screen-watch offer, video first.
func watchKinds() []webrtc.RTPCodecType {
	return []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio}
}

// applyParticipants consumes one full participant-directory snapshot. The
// table is rebuilt, never diffed, so a removal between two snapshots can
// never be missed. Afterwards the mesh is reconciled: sessions whose
// counterpart vanished are closed, and a camera session is initiated toward
// every peer this client is elected to call.
func (c *Coordinator) applyParticipants(snap map[domain.ClientID]domain.ParticipantRecord) {
	c.dispatch(func() {
		c.participants = make(map[domain.ClientID]domain.ParticipantRecord, len(snap))
		for id, rec := range snap {
			c.participants[id] = rec
		}

		for key := range c.sessions {
			switch {
			case isCameraKey(key):
				if _, ok := snap[domain.ClientID(key)]; !ok {
					log.Info().Str("module", "room").Str("session", key).Msg("peer gone, closing")
					c.closeSessionLocked(key)
				}
			case isViewerKey(key):
				// A viewer that left the room no longer needs our screen.
				if _, ok := snap[viewerKeyOwner(key)]; !ok {
					log.Info().Str("module", "room").Str("session", key).Msg("viewer gone, closing")
					c.closeSessionLocked(key)
				}
			}
		}

		for id := range snap {
			if id == c.selfID || !Initiator(c.selfID, id) {
				continue
			}
			if _, ok := c.sessions[cameraKey(id)]; ok {
				continue
			}
			c.startCameraSessionLocked(id)
		}
	})
}

func (c *Coordinator) startCameraSessionLocked(peer domain.ClientID) {
	s, err := c.createSession(cameraKey(peer), peer.Inbox(), c.local)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("peer", string(peer)).Msg("camera session")
		return
	}
	if err := c.sendOfferLocked(s, string(c.selfID)); err != nil {
		log.Error().Err(err).Str("module", "room").Str("session", s.key).Msg("camera offer")
	}
}

// applyScreens consumes one full screen-share-directory snapshot: drop watch
// sessions of finished broadcasts and request to view every active foreign
// one. The viewer always initiates regardless of id ordering; the sharer is
// a passive responder on this mesh.
func (c *Coordinator) applyScreens(snap map[domain.ClientID]domain.ScreenShareRecord) {
	c.dispatch(func() {
		c.screens = make(map[domain.ClientID]domain.ScreenShareRecord, len(snap))
		for id, rec := range snap {
			c.screens[id] = rec
		}

		for key := range c.sessions {
			if !isScreenKey(key) {
				continue
			}
			if _, ok := snap[screenKeyOwner(key)]; !ok {
				log.Info().Str("module", "room").Str("session", key).Msg("share ended, closing")
				c.closeSessionLocked(key)
			}
		}

		for id := range snap {
			if id == c.selfID {
				continue
			}
			if _, ok := c.sessions[screenKey(id)]; ok {
				continue
			}
			c.startScreenWatchLocked(id)
		}
	})
}

// startScreenWatchLocked opens a receive-only session toward a sharer: both
// media channels are declared before the offer so the sharer only has to
// attach its capture tracks when answering.
func (c *Coordinator) startScreenWatchLocked(sharer domain.ClientID) {
	s, err := c.createSession(screenKey(sharer), sharer.ScreenInbox(), nil)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("sharer", string(sharer)).Msg("screen session")
		return
	}
	for _, kind := range watchKinds() {
		if err := s.tp.AddRecvOnlyTransceiver(kind); err != nil {
			log.Warn().Err(err).Str("module", "room").Str("session", s.key).Msg("recvonly transceiver")
		}
	}
	if err := c.sendOfferLocked(s, string(c.selfID)); err != nil {
		log.Error().Err(err).Str("module", "room").Str("session", s.key).Msg("watch offer")
	}
}
