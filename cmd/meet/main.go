package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/rendezvous"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/dkeye/Meet/internal/room"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	selfID := domain.NewClientID()
	roomName := domain.RoomName(cfg.Room)
	log.Info().Str("module", "main").Str("room", cfg.Room).Str("self", string(selfID)).Msg("joining room")

	client, err := rendezvous.Dial(ctx, cfg.ServerURL, roomName, selfID)
	if err != nil {
		log.Fatal().Err(err).Msg("rendezvous dial failed")
	}
	client.OnDisconnect(func(err error) {
		log.Error().Err(err).Msg("rendezvous connection lost")
		cancel()
	})

	stunURLs := cfg.StunURLs
	if len(stunURLs) == 0 {
		stunURLs = rtc.DefaultSTUNServers
	}
	factory := rtc.NewFactory(stunURLs)

	camera, err := media.NewCameraStream("camera")
	if err != nil {
		log.Fatal().Err(err).Msg("camera stream setup failed")
	}
	media.Pump(ctx, camera)

	coord := room.New(room.Config{
		Room:         roomName,
		SelfID:       selfID,
		DisplayName:  cfg.DisplayName,
		AudioEnabled: true,
		VideoEnabled: true,
	}, client, client, factory)
	coord.SetLocalStream(camera)

	drainer := media.NewDrainer()
	coord.OnViewUpdate(func(view []core.Participant, sharingID string) {
		ev := log.Info().Str("module", "main").Int("participants", len(view))
		if sharingID != "" {
			ev = ev.Str("sharing", sharingID)
		}
		ev.Msg("room view updated")
		for _, p := range view {
			if p.Stream == nil {
				continue
			}
			for _, t := range p.Stream.Tracks() {
				if remote, ok := t.(*webrtc.TrackRemote); ok {
					drainer.Drain(ctx, remote)
				}
			}
		}
	})

	if err := coord.Join(ctx); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}

	<-ctx.Done()

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer leaveCancel()
	if err := coord.Leave(leaveCtx); err != nil {
		log.Error().Err(err).Msg("leave failed")
	}
	if err := client.Close(); err != nil {
		log.Error().Err(err).Msg("rendezvous close failed")
	}
	log.Info().Msg("left room")
}
