// Command cadence-mpris bridges cadenced's RPC surface onto the session
// D-Bus MPRIS interface, so desktop shells and media keys can control
// cadenced like any other media player.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cadence/internal/mpris"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:7700", "cadenced RPC address")
	pollInterval := flag.Duration("poll", 2*time.Second, "playback status poll interval")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", "cadence-mpris").Logger()

	client := mpris.NewClient(*addr)
	bridge, err := mpris.New(client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start mpris bridge")
	}
	defer bridge.Close()

	log.Info().Str("addr", *addr).Msg("cadence-mpris bridge running")

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := bridge.RefreshPlaybackStatus(context.Background()); err != nil {
				log.Debug().Err(err).Msg("playback status refresh failed")
			}
		case <-quit:
			log.Info().Msg("shutting down")
			return
		}
	}
}
