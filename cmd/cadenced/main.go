// Command cadenced is the long-running daemon: it owns the embedded
// database, the audio kernel, and the RPC surface every client (CLI, TUI,
// MPRIS bridge) talks to.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cadence/internal/audio"
	"cadence/internal/config"
	"cadence/internal/daemon"
	"cadence/internal/library"
	"cadence/internal/rpcapi"
	"cadence/internal/search"
	"cadence/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to cadence.toml")
	debug := flag.Bool("debug", false, "enable debug logging and gin debug mode")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", "cadenced").Logger()
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.Open(expandHome(cfg.Daemon.DBPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	indexPath := expandHome(cfg.Daemon.DBPath) + ".bleve"
	index, err := search.Open(indexPath, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open search index")
	}
	defer index.Close()

	lib := library.New(db, index, log)

	watcher, err := library.NewWatcher(lib, cfg.Daemon, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create library watcher, live rescans disabled")
	} else if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("failed to start library watcher, live rescans disabled")
	} else {
		defer watcher.Stop()
	}

	kernel := audio.NewKernel(audio.NewSpeakerSink(), audio.OpenDecoder, log, 32)
	go kernel.Run()
	defer func() {
		done := make(chan struct{})
		kernel.Commands <- audio.Shutdown{Done: done}
		<-done
	}()

	ctrl := daemon.New(db, cfg, lib, index, kernel, log)
	server := rpcapi.New(ctrl, log)

	httpServer := &http.Server{
		Addr:         cfg.Daemon.Addr,
		Handler:      server.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Daemon.Addr).Msg("cadenced listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("rpc server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("received interrupt, shutting down")
	case <-ctrl.Quit():
		log.Info().Msg("daemon_shutdown requested, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced rpc server shutdown")
	}
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s%s", home, path[1:])
}
