package media

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Drainer pulls RTP out of remote tracks so transport receive buffers never
// back up. Headless clients have no renderer; the drain replaces it and keeps
// lightweight per-track stats.
type Drainer struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewDrainer() *Drainer {
	return &Drainer{active: make(map[string]struct{})}
}

// Drain starts reading the track in the background. Starting the same track
// twice is a no-op, so callers can resubmit every track on each view update.
func (d *Drainer) Drain(ctx context.Context, track *webrtc.TrackRemote) {
	d.mu.Lock()
	if _, ok := d.active[track.ID()]; ok {
		d.mu.Unlock()
		return
	}
	d.active[track.ID()] = struct{}{}
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.active, track.ID())
			d.mu.Unlock()
		}()
		d.readLoop(ctx, track)
	}()
}

func (d *Drainer) readLoop(ctx context.Context, track *webrtc.TrackRemote) {
	var (
		packets uint64
		bytes   uint64
		lost    uint64
		lastSeq uint16
		first   = true
	)
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("module", "media").Str("track", track.ID()).Msg("rtp read")
			}
			log.Info().
				Str("module", "media").
				Str("track", track.ID()).
				Str("kind", track.Kind().String()).
				Uint64("packets", packets).
				Uint64("bytes", bytes).
				Uint64("lost", lost).
				Msg("track drained")
			return
		}
		packets++
		bytes += uint64(len(pkt.Payload))
		lost += seqGap(pkt, lastSeq, first)
		lastSeq = pkt.SequenceNumber
		first = false
	}
}

// seqGap counts missing sequence numbers between consecutive packets,
// tolerating the uint16 wrap.
func seqGap(pkt *rtp.Packet, lastSeq uint16, first bool) uint64 {
	if first {
		return 0
	}
	diff := pkt.SequenceNumber - lastSeq
	if diff == 0 || diff > 0x8000 { // duplicate or reorder
		return 0
	}
	return uint64(diff - 1)
}
