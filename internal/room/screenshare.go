package room

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

var (
	ErrAlreadySharing = errors.New("already sharing")
	ErrNotSharing     = errors.New("not sharing")
)

// StartScreenShare publishes this client's broadcast record. The sharer
// never initiates: each viewer's inbound offer on the screen inbox is
// answered with a "<viewer>_viewer" session carrying the capture's tracks.
func (c *Coordinator) StartScreenShare(ctx context.Context, capture *media.LocalStream) error {
	c.mu.Lock()
	if c.closed || !c.joined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	if c.screen != nil {
		c.mu.Unlock()
		return ErrAlreadySharing
	}
	c.screen = capture
	rec := c.screenShareRecordLocked(time.Now().UnixMilli())
	if err := c.dir.PutScreenShare(ctx, rec); err != nil {
		c.screen = nil
		c.mu.Unlock()
		return err
	}
	if err := c.dir.GuardScreenShare(ctx, c.selfID); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("guard screen share")
	}
	c.screens[c.selfID] = rec
	c.finishLocked()
	log.Info().Str("module", "room").Str("self", string(c.selfID)).Msg("screen share started")
	return nil
}

// StopScreenShare removes the record and closes every viewer session
// immediately, without waiting for the viewers' directories to converge, so
// no outbound transport dangles.
func (c *Coordinator) StopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.screen == nil {
		c.mu.Unlock()
		return ErrNotSharing
	}
	c.screen = nil
	delete(c.screens, c.selfID)
	for key := range c.sessions {
		if isViewerKey(key) {
			c.closeSessionLocked(key)
		}
	}
	c.finishLocked()

	if err := c.dir.DeleteScreenShare(ctx, c.selfID); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("delete screen share")
	}
	if err := c.mbox.Purge(ctx, c.selfID.ScreenInbox()); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("purge screen inbox")
	}
	log.Info().Str("module", "room").Str("self", string(c.selfID)).Msg("screen share stopped")
	return nil
}

func (c *Coordinator) screenShareRecordLocked(createdAt int64) domain.ScreenShareRecord {
	return domain.ScreenShareRecord{
		ID:           c.selfID,
		DisplayName:  c.displayName + " (Screen)",
		AudioEnabled: c.screen != nil && c.screen.Has(webrtc.RTPCodecTypeAudio),
		CreatedAt:    createdAt,
	}
}

func (c *Coordinator) publishScreenShareLocked(ctx context.Context) {
	rec, ok := c.screens[c.selfID]
	if !ok {
		return
	}
	rec.DisplayName = c.displayName + " (Screen)"
	c.screens[c.selfID] = rec
	if err := c.dir.PutScreenShare(ctx, rec); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("publish screen share")
	}
}

// finishLocked recomputes the view and fires the UI callback after the
// caller-held lock is released. Used by the entry points that cannot go
// through dispatch because they return errors.
func (c *Coordinator) finishLocked() {
	c.recomputeLocked()
	view := c.viewCopyLocked()
	sharing := c.sharingID
	cb := c.onView
	c.mu.Unlock()
	if cb != nil {
		cb(view, sharing)
	}
}
