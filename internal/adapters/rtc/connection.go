// Package rtc implements core.Transport on a pion PeerConnection.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

var errNoSender = errors.New("transceiver has no sender")

// DefaultSTUNServers is used when the config names none.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:global.stun.twilio.com:3478",
}

type Factory struct {
	cfg webrtc.Configuration
}

func NewFactory(stunURLs []string) *Factory {
	if len(stunURLs) == 0 {
		stunURLs = DefaultSTUNServers
	}
	return &Factory{cfg: webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}}
}

func (f *Factory) NewTransport() (core.Transport, error) {
	pc, err := webrtc.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	t := &Transport{pc: pc}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		if fn := t.iceHandler(); fn != nil {
			fn(cand.ToJSON())
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if fn := t.trackHandler(); fn != nil {
			fn(track)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateDisconnected {
			if fn := t.goneHandler(); fn != nil {
				fn()
			}
		}
	})
	return t, nil
}

// Transport wraps one *webrtc.PeerConnection behind the surface the
// coordinator negotiates against.
type Transport struct {
	pc *webrtc.PeerConnection

	mu     sync.RWMutex
	onICE  func(webrtc.ICECandidateInit)
	onTrk  func(core.RemoteTrack)
	onGone func()
}

func (t *Transport) SignalingState() webrtc.SignalingState { return t.pc.SignalingState() }

func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (t *Transport) SetLocalDescription(d webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(d)
}

func (t *Transport) SetRemoteDescription(d webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(d)
}

func (t *Transport) Rollback() error {
	return t.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (t *Transport) HasRemoteDescription() bool { return t.pc.RemoteDescription() != nil }

func (t *Transport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track and drains its RTCP stream so the
// connection stays alive.
func (t *Transport) AddTrack(track webrtc.TrackLocal) error {
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go drainRTCP(sender)
	return nil
}

func (t *Transport) AddRecvOnlyTransceiver(kind webrtc.RTPCodecType) error {
	_, err := t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}

func (t *Transport) Transceivers() []core.Transceiver {
	raw := t.pc.GetTransceivers()
	out := make([]core.Transceiver, 0, len(raw))
	for _, tr := range raw {
		out = append(out, &transceiver{tr: tr})
	}
	return out
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onICE = fn
	t.mu.Unlock()
}

func (t *Transport) OnTrack(fn func(core.RemoteTrack)) {
	t.mu.Lock()
	t.onTrk = fn
	t.mu.Unlock()
}

func (t *Transport) OnDisconnected(fn func()) {
	t.mu.Lock()
	t.onGone = fn
	t.mu.Unlock()
}

func (t *Transport) Close() error { return t.pc.Close() }

func (t *Transport) iceHandler() func(webrtc.ICECandidateInit) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onICE
}

func (t *Transport) trackHandler() func(core.RemoteTrack) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onTrk
}

func (t *Transport) goneHandler() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onGone
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// transceiver adapts *webrtc.RTPTransceiver to core.Transceiver.
type transceiver struct {
	tr *webrtc.RTPTransceiver
}

func (t *transceiver) Kind() webrtc.RTPCodecType { return t.tr.Kind() }

func (t *transceiver) SenderTrack() webrtc.TrackLocal {
	sender := t.tr.Sender()
	if sender == nil {
		return nil
	}
	return sender.Track()
}

func (t *transceiver) ReplaceSenderTrack(track webrtc.TrackLocal) error {
	sender := t.tr.Sender()
	if sender == nil {
		return errNoSender
	}
	return sender.ReplaceTrack(track)
}
