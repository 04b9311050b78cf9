package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"cadence/internal/config"
)

// Watcher debounces filesystem change events across every configured
// library path and triggers a rescan once things settle, instead of
// reacting to every individual write as a file streams to disk.
type Watcher struct {
	lib    *Library
	cfg    config.DaemonConfig
	log    zerolog.Logger
	fsw    *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	watched map[string]bool
	timer   *time.Timer

	stop chan struct{}
	done chan struct{}
}

// NewWatcher creates a Watcher over every path in cfg.LibraryPaths. The
// returned Watcher does not start watching until Start is called.
func NewWatcher(lib *Library, cfg config.DaemonConfig, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		lib:      lib,
		cfg:      cfg,
		log:      log.With().Str("component", "library-watch").Logger(),
		fsw:      fsw,
		debounce: 5 * time.Second,
		watched:  make(map[string]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start adds a recursive watch on every library path and begins the event
// loop in a new goroutine. Rescans it triggers run with a background
// context, since no caller is waiting on them.
func (w *Watcher) Start() error {
	for _, root := range w.cfg.LibraryPaths {
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			w.log.Warn().Err(err).Str("path", root).Msg("skipping unwatchable library path")
			continue
		}
		if err := w.addRecursive(resolved); err != nil {
			w.log.Warn().Err(err).Str("path", root).Msg("failed to watch library path")
		}
	}
	go w.loop()
	return nil
}

// Stop closes the event loop and the underlying inotify handle.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !isSupportedExtension(event.Name) {
		return
	}

	w.scheduleRescan(event.Name)
}

func isSupportedExtension(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) scheduleRescan(triggeredBy string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		ctx := context.Background()
		w.log.Info().Str("triggered_by", triggeredBy).Msg("debounced change, rescanning library")
		if _, err := w.lib.Rescan(ctx, w.cfg); err != nil {
			w.log.Warn().Err(err).Msg("watch-triggered rescan failed")
		}
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}

		w.mu.Lock()
		already := w.watched[path]
		w.mu.Unlock()
		if already {
			return nil
		}

		if err := w.fsw.Add(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
			return nil
		}
		w.mu.Lock()
		w.watched[path] = true
		w.mu.Unlock()
		return nil
	})
}
