package room

import (
	"sort"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// recomputeLocked rebuilds the participant view from scratch: self, the own
// broadcast, every live directory participant and every active foreign
// screen, each carrying whatever stream its session has produced so far.
// Full recomputation keeps the view a pure function of directory tables and
// session streams, there is nothing to get stale.
func (c *Coordinator) recomputeLocked() {
	all := make([]core.Participant, 0, len(c.participants)+len(c.screens)+2)

	all = append(all, core.Participant{
		ID:           string(c.selfID),
		DisplayName:  c.displayName,
		Local:        true,
		AudioEnabled: c.audioOn,
		VideoEnabled: c.videoOn,
		JoinedAt:     c.joinedAt,
	})

	if c.screen != nil {
		all = append(all, core.Participant{
			ID:           c.selfID.ScreenInbox(),
			DisplayName:  c.displayName + " (You)",
			Local:        true,
			AudioEnabled: c.screen.Has(webrtc.RTPCodecTypeAudio),
			VideoEnabled: true,
			ScreenShare:  true,
		})
	}

	remotes := make([]domain.ParticipantRecord, 0, len(c.participants))
	for id, rec := range c.participants {
		if id == c.selfID {
			continue
		}
		remotes = append(remotes, rec)
	}
	sort.Slice(remotes, func(i, j int) bool {
		if remotes[i].JoinedAt != remotes[j].JoinedAt {
			return remotes[i].JoinedAt < remotes[j].JoinedAt
		}
		return remotes[i].ID < remotes[j].ID
	})
	for _, rec := range remotes {
		entry := core.Participant{
			ID:           string(rec.ID),
			DisplayName:  rec.DisplayName,
			AudioEnabled: rec.AudioEnabled,
			VideoEnabled: rec.VideoEnabled,
			JoinedAt:     rec.JoinedAt,
		}
		if s, ok := c.sessions[cameraKey(rec.ID)]; ok {
			entry.Stream = s.remote
		}
		all = append(all, entry)
	}

	shares := make([]domain.ScreenShareRecord, 0, len(c.screens))
	for _, rec := range c.screens {
		shares = append(shares, rec)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].CreatedAt != shares[j].CreatedAt {
			return shares[i].CreatedAt > shares[j].CreatedAt
		}
		return shares[i].ID > shares[j].ID
	})
	for _, rec := range shares {
		if rec.ID == c.selfID {
			continue
		}
		entry := core.Participant{
			ID:           rec.ID.ScreenInbox(),
			DisplayName:  rec.DisplayName,
			AudioEnabled: rec.AudioEnabled,
			VideoEnabled: true,
			ScreenShare:  true,
			JoinedAt:     rec.CreatedAt,
		}
		if s, ok := c.sessions[screenKey(rec.ID)]; ok {
			entry.Stream = s.remote
		}
		all = append(all, entry)
	}

	// Exactly one share is the active one: newest CreatedAt, ties broken by
	// the larger id. Simultaneous timestamps are acceptable collisions, the
	// tie break only has to be the same on every client.
	c.sharingID = ""
	if len(shares) > 0 {
		c.sharingID = shares[0].ID.ScreenInbox()
	}

	c.view = all
}

func (c *Coordinator) viewCopyLocked() []core.Participant {
	out := make([]core.Participant, len(c.view))
	copy(out, c.view)
	return out
}
