package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cadence/internal/config"
)

func newTestWatcher(t *testing.T, dir string) (*Watcher, *Library) {
	t.Helper()
	lib := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{dir}}
	w, err := NewWatcher(lib, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 30 * time.Millisecond
	return w, lib
}

func TestWatcherAddsNewSubdirectoryToWatchSet(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "newalbum")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		ok := w.watched[sub]
		w.mu.Unlock()
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %s to be added to the watch set", sub)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcherTriggeredRescanReleasesItsLock(t *testing.T) {
	dir := t.TempDir()
	w, lib := newTestWatcher(t, dir)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("not a real mp3"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Wait past the debounce so the watcher's rescan has fired, then poll
	// until it releases rescanMu, even though the file's tags fail to parse.
	time.Sleep(2 * w.debounce)
	deadline := time.Now().Add(3 * time.Second)
	for {
		if w.lib.rescanMu.TryLock() {
			w.lib.rescanMu.Unlock()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch-triggered rescan never released its lock")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := lib.Rescan(context.Background(), config.DaemonConfig{LibraryPaths: []string{dir}}); err != nil {
		t.Fatalf("expected a follow-up rescan to succeed once the watcher's run is done, got %v", err)
	}
}
