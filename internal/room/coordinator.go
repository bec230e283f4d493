// Package room implements the peer-session signaling and lifecycle
// coordinator: it projects directory snapshots into a participant view,
// elects who negotiates with whom, drives offer/answer/candidate exchange
// per peer session, keeps live sessions in step with local media toggles and
// tears sessions down when their counterpart disappears.
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

var (
	ErrAlreadyJoined = errors.New("already joined")
	ErrNotJoined     = errors.New("not joined")
)

type Config struct {
	Room         domain.RoomName
	SelfID       domain.ClientID
	DisplayName  string
	AudioEnabled bool
	VideoEnabled bool
}

// ViewFunc receives the recomputed participant view and the id of the
// currently active screen share ("" when nobody shares). Called outside the
// coordinator lock; implementations may call back into the coordinator.
type ViewFunc func(view []core.Participant, sharingID string)

// Coordinator is the single logical owner of all per-room session state.
// Directory snapshots, inbox messages and transport callbacks arrive on
// independent goroutines and are serialized through one mutex; every
// mutation ends with a full view recompute.
type Coordinator struct {
	mu sync.Mutex

	room        domain.RoomName
	selfID      domain.ClientID
	displayName string
	audioOn     bool
	videoOn     bool
	joinedAt    int64

	dir        core.Directory
	mbox       core.Mailbox
	transports core.TransportFactory

	local  *media.LocalStream // camera/mic, nil until capture is up
	screen *media.LocalStream // nil unless broadcasting

	participants map[domain.ClientID]domain.ParticipantRecord
	screens      map[domain.ClientID]domain.ScreenShareRecord
	sessions     map[string]*session

	view      []core.Participant
	sharingID string
	onView    ViewFunc

	ctx    context.Context // lifetime of the joined room, for async sends
	stops  []func()
	joined bool
	closed bool
}

func New(cfg Config, dir core.Directory, mbox core.Mailbox, transports core.TransportFactory) *Coordinator {
	return &Coordinator{
		room:         cfg.Room,
		selfID:       cfg.SelfID,
		displayName:  domain.ClampDisplayName(cfg.DisplayName),
		audioOn:      cfg.AudioEnabled,
		videoOn:      cfg.VideoEnabled,
		dir:          dir,
		mbox:         mbox,
		transports:   transports,
		participants: make(map[domain.ClientID]domain.ParticipantRecord),
		screens:      make(map[domain.ClientID]domain.ScreenShareRecord),
		sessions:     make(map[string]*session),
		ctx:          context.Background(),
	}
}

// OnViewUpdate registers the UI-facing callback. Must be set before Join.
func (c *Coordinator) OnViewUpdate(fn ViewFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onView = fn
}

// Join registers this client in the room's directory, arms the dead-man's
// switch for every key it owns and subscribes to snapshots and both inboxes.
// The screen inbox is listened to from the start so viewer offers racing a
// share record publish are still answered.
func (c *Coordinator) Join(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined {
		return ErrAlreadyJoined
	}
	if c.closed {
		return ErrNotJoined
	}

	c.ctx = ctx
	c.joinedAt = time.Now().UnixMilli()
	if err := c.dir.PutParticipant(ctx, c.participantRecordLocked()); err != nil {
		return err
	}
	c.guardOwnedKeys(ctx)

	stops, err := c.subscribe()
	if err != nil {
		for _, stop := range stops {
			stop()
		}
		return err
	}
	c.stops = stops
	c.joined = true
	c.recomputeLocked()
	log.Info().Str("module", "room").Str("room", string(c.room)).Str("self", string(c.selfID)).Msg("joined")
	return nil
}

func (c *Coordinator) subscribe() ([]func(), error) {
	var stops []func()
	stop, err := c.mbox.Listen(c.selfID.Inbox(), func(m domain.SignalMessage) {
		c.handleSignal(m, false)
	})
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)

	stop, err = c.mbox.Listen(c.selfID.ScreenInbox(), func(m domain.SignalMessage) {
		c.handleSignal(m, true)
	})
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)

	stop, err = c.dir.WatchParticipants(c.applyParticipants)
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)

	stop, err = c.dir.WatchScreenShares(c.applyScreens)
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)
	return stops, nil
}

func (c *Coordinator) guardOwnedKeys(ctx context.Context) {
	if err := c.dir.GuardParticipant(ctx, c.selfID); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("guard participant")
	}
	if err := c.mbox.GuardInbox(ctx, c.selfID.Inbox()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("guard inbox")
	}
	if err := c.mbox.GuardInbox(ctx, c.selfID.ScreenInbox()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("guard screen inbox")
	}
}

// Leave tears everything down: subscriptions, sessions, directory records
// and both inboxes. Cleanup is best effort, the dead-man's switch covers
// whatever a dropped connection leaves behind.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	if !c.joined || c.closed {
		c.mu.Unlock()
		return ErrNotJoined
	}
	c.closed = true
	stops := c.stops
	c.stops = nil
	for key := range c.sessions {
		c.closeSessionLocked(key)
	}
	c.participants = make(map[domain.ClientID]domain.ParticipantRecord)
	c.screens = make(map[domain.ClientID]domain.ScreenShareRecord)
	wasSharing := c.screen != nil
	c.screen = nil
	c.recomputeLocked()
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if err := c.dir.DeleteParticipant(ctx, c.selfID); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("delete participant")
	}
	if wasSharing {
		if err := c.dir.DeleteScreenShare(ctx, c.selfID); err != nil {
			log.Warn().Err(err).Str("module", "room").Msg("delete screen share")
		}
	}
	if err := c.mbox.Purge(ctx, c.selfID.Inbox()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("purge inbox")
	}
	if err := c.mbox.Purge(ctx, c.selfID.ScreenInbox()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("purge screen inbox")
	}
	log.Info().Str("module", "room").Str("room", string(c.room)).Str("self", string(c.selfID)).Msg("left")
	return nil
}

// dispatch serializes one event: run fn under the lock, recompute the view,
// then notify the UI callback outside the lock.
func (c *Coordinator) dispatch(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn()
	c.finishLocked()
}

// Participants returns a copy of the current view.
func (c *Coordinator) Participants() []core.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewCopyLocked()
}

// ScreenSharingID returns the id of the active screen share entry, "" if none.
func (c *Coordinator) ScreenSharingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharingID
}

// SetLocalStream installs (or replaces) the camera/microphone stream and
// reconciles every live camera session with it.
func (c *Coordinator) SetLocalStream(ls *media.LocalStream) {
	c.dispatch(func() {
		c.local = ls
		c.syncTracksLocked()
	})
}

// SyncLocalTracks re-runs the track synchronizer after the caller mutated
// the local stream in place (toggled a track slot).
func (c *Coordinator) SyncLocalTracks() {
	c.dispatch(func() {
		c.syncTracksLocked()
	})
}

// SetAudioEnabled republishes the participant record with the new microphone
// flag and reconciles sessions.
func (c *Coordinator) SetAudioEnabled(ctx context.Context, on bool) {
	c.dispatch(func() {
		c.audioOn = on
		c.publishParticipantLocked(ctx)
		c.syncTracksLocked()
	})
}

// SetVideoEnabled republishes the participant record with the new camera
// flag and reconciles sessions.
func (c *Coordinator) SetVideoEnabled(ctx context.Context, on bool) {
	c.dispatch(func() {
		c.videoOn = on
		c.publishParticipantLocked(ctx)
		c.syncTracksLocked()
	})
}

// SetDisplayName updates the name in the directory record (and the screen
// record while sharing, mirroring its "(Screen)" suffix).
func (c *Coordinator) SetDisplayName(ctx context.Context, name string) {
	c.dispatch(func() {
		c.displayName = domain.ClampDisplayName(name)
		c.publishParticipantLocked(ctx)
		if c.screen != nil {
			c.publishScreenShareLocked(ctx)
		}
	})
}

func (c *Coordinator) participantRecordLocked() domain.ParticipantRecord {
	return domain.ParticipantRecord{
		ID:           c.selfID,
		DisplayName:  c.displayName,
		AudioEnabled: c.audioOn,
		VideoEnabled: c.videoOn,
		JoinedAt:     c.joinedAt,
	}
}

func (c *Coordinator) publishParticipantLocked(ctx context.Context) {
	if !c.joined || c.closed {
		return
	}
	if err := c.dir.PutParticipant(ctx, c.participantRecordLocked()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("publish participant")
	}
}
