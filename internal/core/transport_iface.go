package core

import "github.com/pion/webrtc/v4"

// RemoteTrack is the read side of one incoming media track.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// Transceiver is one negotiated media channel of a Transport. Its kind is
// stable for the life of the channel even while the sender track is nil.
type Transceiver interface {
	Kind() webrtc.RTPCodecType
	SenderTrack() webrtc.TrackLocal
	// ReplaceSenderTrack swaps the outgoing track without renegotiation.
	// A nil track keeps the channel alive sending silence/blank frames.
	ReplaceSenderTrack(webrtc.TrackLocal) error
}

// Transport abstracts one peer media connection: offer/answer/candidate
// generation, track management and terminal state notification. The
// coordinator drives it through the negotiation state machine; callbacks are
// invoked from the transport's own goroutines.
type Transport interface {
	SignalingState() webrtc.SignalingState
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// Rollback discards the pending local offer so a remote one can be
	// applied instead (glare recovery).
	Rollback() error
	HasRemoteDescription() bool
	AddICECandidate(webrtc.ICECandidateInit) error

	AddTrack(webrtc.TrackLocal) error
	AddRecvOnlyTransceiver(webrtc.RTPCodecType) error
	Transceivers() []Transceiver

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(RemoteTrack))
	// OnDisconnected fires once the connection reaches a terminal state
	// (failed or disconnected).
	OnDisconnected(func())

	Close() error
}

// TransportFactory builds one Transport per negotiated session.
type TransportFactory interface {
	NewTransport() (Transport, error)
}
