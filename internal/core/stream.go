package core

import "github.com/pion/webrtc/v4"

// RemoteStream groups the remote tracks one session has produced. The first
// track's stream id names the bundle; later tracks with the same id join it.
// Mutation is serialized by the coordinator, the struct itself holds no lock.
type RemoteStream struct {
	id     string
	tracks []RemoteTrack
}

func NewRemoteStream(id string) *RemoteStream {
	return &RemoteStream{id: id}
}

func (s *RemoteStream) StreamID() string { return s.id }

// AddTrack appends a track, replacing a previous one of the same kind (a
// renegotiated channel delivers a fresh TrackRemote for the same slot).
func (s *RemoteStream) AddTrack(t RemoteTrack) {
	for i, cur := range s.tracks {
		if cur.Kind() == t.Kind() {
			s.tracks[i] = t
			return
		}
	}
	s.tracks = append(s.tracks, t)
}

func (s *RemoteStream) Tracks() []RemoteTrack {
	out := make([]RemoteTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *RemoteStream) Track(kind webrtc.RTPCodecType) RemoteTrack {
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}
