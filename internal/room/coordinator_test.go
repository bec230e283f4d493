package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/domain"
)

type rig struct {
	coord *Coordinator
	dir   *fakeDirectory
	mbox  *fakeMailbox
	fac   *fakeFactory
	self  domain.ClientID
}

func newRig(t *testing.T, self string) *rig {
	t.Helper()
	r := &rig{
		dir:  newFakeDirectory(),
		mbox: newFakeMailbox(),
		fac:  &fakeFactory{},
		self: domain.ClientID(self),
	}
	r.coord = New(Config{
		Room:         "test",
		SelfID:       r.self,
		DisplayName:  "Tester",
		AudioEnabled: true,
		VideoEnabled: true,
	}, r.dir, r.mbox, r.fac)
	if err := r.coord.Join(context.Background()); err != nil {
		t.Fatalf("join: %v", err)
	}
	return r
}

func participant(id string, joinedAt int64) domain.ParticipantRecord {
	return domain.ParticipantRecord{
		ID:           domain.ClientID(id),
		DisplayName:  id,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     joinedAt,
	}
}

func screenRecord(id string, createdAt int64) domain.ScreenShareRecord {
	return domain.ScreenShareRecord{
		ID:          domain.ClientID(id),
		DisplayName: id + " (Screen)",
		CreatedAt:   createdAt,
	}
}

func (r *rig) selfRecord() domain.ParticipantRecord {
	r.dir.mu.Lock()
	defer r.dir.mu.Unlock()
	return r.dir.participants[r.self]
}

func signalMsg(t *testing.T, kind domain.SignalKind, payload any, sender string) domain.SignalMessage {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return domain.SignalMessage{Kind: kind, Payload: b, SenderID: sender, SenderName: sender}
}

func offerMsg(t *testing.T, sender string) domain.SignalMessage {
	return signalMsg(t, domain.SignalOffer, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, sender)
}

func answerMsg(t *testing.T, sender string) domain.SignalMessage {
	return signalMsg(t, domain.SignalAnswer, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, sender)
}

func candidateMsg(t *testing.T, sender string) domain.SignalMessage {
	return signalMsg(t, domain.SignalCandidate, webrtc.ICECandidateInit{Candidate: "candidate:1"}, sender)
}

func TestJoinPublishesRecordAndGuards(t *testing.T) {
	r := newRig(t, "user_b")

	rec := r.selfRecord()
	if rec.ID != r.self || rec.DisplayName != "Tester" || !rec.AudioEnabled || !rec.VideoEnabled {
		t.Errorf("unexpected self record %+v", rec)
	}
	if rec.JoinedAt == 0 {
		t.Error("JoinedAt not set")
	}
	if len(r.dir.guardedClients) != 1 || r.dir.guardedClients[0] != r.self {
		t.Errorf("participant not guarded: %v", r.dir.guardedClients)
	}
	want := map[string]bool{"user_b": true, "user_b_screen": true}
	for _, in := range r.mbox.guarded {
		delete(want, in)
	}
	if len(want) != 0 {
		t.Errorf("inboxes left unguarded: %v", want)
	}
	if r.mbox.listeners["user_b"] == nil || r.mbox.listeners["user_b_screen"] == nil {
		t.Error("inbox listeners missing")
	}
}

func TestJoinTwice(t *testing.T) {
	r := newRig(t, "user_b")
	if err := r.coord.Join(context.Background()); err != ErrAlreadyJoined {
		t.Errorf("second join: got %v, want ErrAlreadyJoined", err)
	}
}

func TestLeaveWithoutJoin(t *testing.T) {
	c := New(Config{SelfID: "user_x"}, newFakeDirectory(), newFakeMailbox(), &fakeFactory{})
	if err := c.Leave(context.Background()); err != ErrNotJoined {
		t.Errorf("leave: got %v, want ErrNotJoined", err)
	}
}

func TestSnapshotInitiatesTowardLesserIDs(t *testing.T) {
	r := newRig(t, "user_b")

	r.dir.pushParticipants(
		participant("user_b", 1),
		participant("user_a", 2),
		participant("user_c", 3),
	)

	// user_b > user_a, so only user_a is called; user_c will call us.
	if got := r.fac.count(); got != 1 {
		t.Fatalf("transports created: got %d, want 1", got)
	}
	sent := r.mbox.sentTo("user_a")
	if len(sent) != 1 || sent[0].Kind != domain.SignalOffer {
		t.Fatalf("offer to user_a: got %v", sent)
	}
	if sent[0].SenderID != "user_b" {
		t.Errorf("offer sender: got %q, want user_b", sent[0].SenderID)
	}
	if len(r.mbox.sentTo("user_c")) != 0 {
		t.Error("should not have offered toward the greater id")
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	r := newRig(t, "user_b")
	r.dir.pushParticipants(participant("user_b", 1), participant("user_a", 2))
	r.dir.pushParticipants(participant("user_b", 1), participant("user_a", 2))

	if got := r.fac.count(); got != 1 {
		t.Errorf("transports after duplicate snapshot: got %d, want 1", got)
	}
	if got := len(r.mbox.sentTo("user_a")); got != 1 {
		t.Errorf("offers after duplicate snapshot: got %d, want 1", got)
	}
}

func TestPeerRemovalClosesSession(t *testing.T) {
	r := newRig(t, "user_b")
	r.dir.pushParticipants(participant("user_b", 1), participant("user_a", 2))
	tp := r.fac.last()

	r.dir.pushParticipants(participant("user_b", 1))

	if !tp.closed {
		t.Error("transport not closed on peer removal")
	}
	for _, p := range r.coord.Participants() {
		if p.ID == "user_a" {
			t.Error("removed peer still in view")
		}
	}
}

func TestLeaveCleansUp(t *testing.T) {
	r := newRig(t, "user_b")
	r.dir.pushParticipants(participant("user_b", 1), participant("user_a", 2))
	tp := r.fac.last()

	if err := r.coord.Leave(context.Background()); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !tp.closed {
		t.Error("session transport not closed")
	}
	if len(r.dir.deletedClients) != 1 || r.dir.deletedClients[0] != r.self {
		t.Errorf("participant record not deleted: %v", r.dir.deletedClients)
	}
	want := map[string]bool{"user_b": true, "user_b_screen": true}
	for _, in := range r.mbox.purged {
		delete(want, in)
	}
	if len(want) != 0 {
		t.Errorf("inboxes left unpurged: %v", want)
	}

	// Events arriving after leave are ignored.
	before := r.fac.count()
	r.dir.pushParticipants(participant("user_b", 1), participant("user_a", 2))
	if r.fac.count() != before {
		t.Error("snapshot after leave created a session")
	}
}

func TestMediaToggleRepublishesRecord(t *testing.T) {
	r := newRig(t, "user_b")

	r.coord.SetVideoEnabled(context.Background(), false)
	if rec := r.selfRecord(); rec.VideoEnabled {
		t.Error("video flag not republished")
	}
	r.coord.SetAudioEnabled(context.Background(), false)
	if rec := r.selfRecord(); rec.AudioEnabled {
		t.Error("audio flag not republished")
	}
	r.coord.SetDisplayName(context.Background(), "Renamed")
	if rec := r.selfRecord(); rec.DisplayName != "Renamed" {
		t.Errorf("display name not republished: %q", rec.DisplayName)
	}
}
