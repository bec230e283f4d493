package media

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	videoFrameInterval = 33 * time.Millisecond // ~30 fps
	audioFrameInterval = 20 * time.Millisecond // one opus frame
)

// NewCameraStream builds a LocalStream with one opus and one vp8 sample
// track, the shape a real capture pipeline would produce.
func NewCameraStream(label string) (*LocalStream, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", label,
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", label,
	)
	if err != nil {
		return nil, err
	}
	s := NewLocalStream()
	s.SetTrack(webrtc.RTPCodecTypeAudio, audio)
	s.SetTrack(webrtc.RTPCodecTypeVideo, video)
	return s, nil
}

// NewScreenStream builds a video-only LocalStream for a screen broadcast.
func NewScreenStream(label string) (*LocalStream, error) {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"screen", label,
	)
	if err != nil {
		return nil, err
	}
	s := NewLocalStream()
	s.SetTrack(webrtc.RTPCodecTypeVideo, video)
	return s, nil
}

// Pump feeds placeholder samples into every sample track of the stream until
// ctx is done. Headless clients have no capture hardware; pumping keeps the
// sender side of each session alive so remote peers see steady media timing.
func Pump(ctx context.Context, s *LocalStream) {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		track, ok := s.Track(kind).(*webrtc.TrackLocalStaticSample)
		if !ok || track == nil {
			continue
		}
		interval := videoFrameInterval
		if kind == webrtc.RTPCodecTypeAudio {
			interval = audioFrameInterval
		}
		go pumpTrack(ctx, track, interval)
	}
}

func pumpTrack(ctx context.Context, track *webrtc.TrackLocalStaticSample, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	payload := make([]byte, 16)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := pionmedia.Sample{Data: payload, Duration: interval}
			if err := track.WriteSample(sample); err != nil {
				log.Debug().Err(err).Str("module", "media").Str("track", track.ID()).Msg("sample write")
				return
			}
		}
	}
}
