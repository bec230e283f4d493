package room

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// fakeTransport models just enough of the signaling state machine to drive
// the coordinator: offers and answers move the state the way a real peer
// connection would, nothing touches the network.
type fakeTransport struct {
	mu         sync.Mutex
	state      webrtc.SignalingState
	remoteSet  bool
	remoteSets int
	trans      []*fakeTransceiver
	candidates []webrtc.ICECandidateInit
	rollbacks  int
	offers     int
	answers    int
	closed     bool

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
	onGone  func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{state: webrtc.SignalingStateStable}
}

func (t *fakeTransport) SignalingState() webrtc.SignalingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil
}

func (t *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, nil
}

func (t *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch d.Type {
	case webrtc.SDPTypeOffer:
		t.state = webrtc.SignalingStateHaveLocalOffer
	case webrtc.SDPTypeAnswer:
		t.state = webrtc.SignalingStateStable
	}
	return nil
}

func (t *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remoteSet = true
	t.remoteSets++
	switch d.Type {
	case webrtc.SDPTypeOffer:
		t.state = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		t.state = webrtc.SignalingStateStable
	}
	return nil
}

func (t *fakeTransport) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	t.state = webrtc.SignalingStateStable
	return nil
}

func (t *fakeTransport) HasRemoteDescription() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteSet
}

func (t *fakeTransport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candidates = append(t.candidates, ci)
	return nil
}

func (t *fakeTransport) AddTrack(track webrtc.TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trans = append(t.trans, &fakeTransceiver{kind: track.Kind(), track: track})
	return nil
}

func (t *fakeTransport) AddRecvOnlyTransceiver(kind webrtc.RTPCodecType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trans = append(t.trans, &fakeTransceiver{kind: kind, recvOnly: true})
	return nil
}

func (t *fakeTransport) Transceivers() []core.Transceiver {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Transceiver, len(t.trans))
	for i, tr := range t.trans {
		out[i] = tr
	}
	return out
}

func (t *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit)) { t.onICE = fn }
func (t *fakeTransport) OnTrack(fn func(core.RemoteTrack))              { t.onTrack = fn }
func (t *fakeTransport) OnDisconnected(fn func())                       { t.onGone = fn }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) transceiverKinds() []webrtc.RTPCodecType {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := make([]webrtc.RTPCodecType, len(t.trans))
	for i, tr := range t.trans {
		kinds[i] = tr.kind
	}
	return kinds
}

type fakeTransceiver struct {
	kind     webrtc.RTPCodecType
	track    webrtc.TrackLocal
	recvOnly bool
	replaced int
}

func (t *fakeTransceiver) Kind() webrtc.RTPCodecType      { return t.kind }
func (t *fakeTransceiver) SenderTrack() webrtc.TrackLocal { return t.track }
func (t *fakeTransceiver) ReplaceSenderTrack(track webrtc.TrackLocal) error {
	t.track = track
	t.replaced++
	return nil
}

// fakeRemoteTrack stands in for *webrtc.TrackRemote.
type fakeRemoteTrack struct {
	id     string
	stream string
	kind   webrtc.RTPCodecType
}

func (t *fakeRemoteTrack) ID() string                { return t.id }
func (t *fakeRemoteTrack) StreamID() string          { return t.stream }
func (t *fakeRemoteTrack) Kind() webrtc.RTPCodecType { return t.kind }

// fakeFactory hands out fakeTransports and remembers them in creation order.
type fakeFactory struct {
	mu   sync.Mutex
	made []*fakeTransport
}

func (f *fakeFactory) NewTransport() (core.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tp := newFakeTransport()
	f.made = append(f.made, tp)
	return tp, nil
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.made) == 0 {
		return nil
	}
	return f.made[len(f.made)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}

// fakeDirectory records every mutation and exposes the watch callbacks so a
// test can feed snapshots by hand.
type fakeDirectory struct {
	mu              sync.Mutex
	participants    map[domain.ClientID]domain.ParticipantRecord
	shares          map[domain.ClientID]domain.ScreenShareRecord
	participantPuts int
	sharePuts       int
	deletedClients  []domain.ClientID
	deletedShares   []domain.ClientID
	guardedClients  []domain.ClientID
	guardedShares   []domain.ClientID
	onParticipants  func(map[domain.ClientID]domain.ParticipantRecord)
	onScreens       func(map[domain.ClientID]domain.ScreenShareRecord)
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		participants: make(map[domain.ClientID]domain.ParticipantRecord),
		shares:       make(map[domain.ClientID]domain.ScreenShareRecord),
	}
}

func (d *fakeDirectory) PutParticipant(_ context.Context, rec domain.ParticipantRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.participants[rec.ID] = rec
	d.participantPuts++
	return nil
}

func (d *fakeDirectory) DeleteParticipant(_ context.Context, id domain.ClientID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.participants, id)
	d.deletedClients = append(d.deletedClients, id)
	return nil
}

func (d *fakeDirectory) GuardParticipant(_ context.Context, id domain.ClientID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.guardedClients = append(d.guardedClients, id)
	return nil
}

func (d *fakeDirectory) WatchParticipants(fn func(map[domain.ClientID]domain.ParticipantRecord)) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onParticipants = fn
	return func() {}, nil
}

func (d *fakeDirectory) PutScreenShare(_ context.Context, rec domain.ScreenShareRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shares[rec.ID] = rec
	d.sharePuts++
	return nil
}

func (d *fakeDirectory) DeleteScreenShare(_ context.Context, id domain.ClientID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shares, id)
	d.deletedShares = append(d.deletedShares, id)
	return nil
}

func (d *fakeDirectory) GuardScreenShare(_ context.Context, id domain.ClientID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.guardedShares = append(d.guardedShares, id)
	return nil
}

func (d *fakeDirectory) WatchScreenShares(fn func(map[domain.ClientID]domain.ScreenShareRecord)) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onScreens = fn
	return func() {}, nil
}

// pushParticipants feeds one full snapshot, like the adapter would on its
// delivery goroutine.
func (d *fakeDirectory) pushParticipants(recs ...domain.ParticipantRecord) {
	snap := make(map[domain.ClientID]domain.ParticipantRecord, len(recs))
	for _, r := range recs {
		snap[r.ID] = r
	}
	d.mu.Lock()
	fn := d.onParticipants
	d.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (d *fakeDirectory) pushScreens(recs ...domain.ScreenShareRecord) {
	snap := make(map[domain.ClientID]domain.ScreenShareRecord, len(recs))
	for _, r := range recs {
		snap[r.ID] = r
	}
	d.mu.Lock()
	fn := d.onScreens
	d.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// fakeMailbox records sends per inbox and exposes listener callbacks.
type fakeMailbox struct {
	mu        sync.Mutex
	sent      map[string][]domain.SignalMessage
	listeners map[string]func(domain.SignalMessage)
	purged    []string
	guarded   []string
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		sent:      make(map[string][]domain.SignalMessage),
		listeners: make(map[string]func(domain.SignalMessage)),
	}
}

func (m *fakeMailbox) Send(_ context.Context, inbox string, msg domain.SignalMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[inbox] = append(m.sent[inbox], msg)
	return nil
}

func (m *fakeMailbox) Listen(inbox string, fn func(domain.SignalMessage)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[inbox] = fn
	return func() {}, nil
}

func (m *fakeMailbox) Purge(_ context.Context, inbox string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, inbox)
	return nil
}

func (m *fakeMailbox) GuardInbox(_ context.Context, inbox string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guarded = append(m.guarded, inbox)
	return nil
}

// deliver hands msg to the listener registered for inbox, like the adapter
// after acking.
func (m *fakeMailbox) deliver(inbox string, msg domain.SignalMessage) {
	m.mu.Lock()
	fn := m.listeners[inbox]
	m.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (m *fakeMailbox) sentTo(inbox string) []domain.SignalMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SignalMessage, len(m.sent[inbox]))
	copy(out, m.sent[inbox])
	return out
}

func (m *fakeMailbox) drain(inbox string) []domain.SignalMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent[inbox]
	m.sent[inbox] = nil
	return out
}
