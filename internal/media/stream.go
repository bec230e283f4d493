// Package media models the locally captured side of a session: the bundle of
// outgoing tracks, a synthetic source for headless runs and a drain for
// incoming RTP.
package media

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// LocalStream is the bundle of locally produced tracks (camera/microphone or
// a screen capture). One slot per media kind; an empty slot means that kind
// is currently off. The owner mutates slots on toggle, the coordinator reads
// them when reconciling sessions.
type LocalStream struct {
	mu     sync.RWMutex
	id     string
	tracks map[webrtc.RTPCodecType]webrtc.TrackLocal
}

func NewLocalStream() *LocalStream {
	return &LocalStream{
		id:     uuid.NewString(),
		tracks: make(map[webrtc.RTPCodecType]webrtc.TrackLocal),
	}
}

func (s *LocalStream) ID() string { return s.id }

// SetTrack fills or clears one kind's slot. A nil track clears it, which a
// later sync turns into a null sender on every live session.
func (s *LocalStream) SetTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if track == nil {
		delete(s.tracks, kind)
		return
	}
	s.tracks[kind] = track
}

func (s *LocalStream) Track(kind webrtc.RTPCodecType) webrtc.TrackLocal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracks[kind]
}

func (s *LocalStream) Has(kind webrtc.RTPCodecType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tracks[kind]
	return ok
}

// Tracks returns the currently present tracks, audio first for stable order.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]webrtc.TrackLocal, 0, len(s.tracks))
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if t, ok := s.tracks[kind]; ok {
			out = append(out, t)
		}
	}
	return out
}
