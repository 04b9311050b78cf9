package library

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cadence/internal/cadenceerr"
	"cadence/internal/config"
	"cadence/internal/models"
	"cadence/internal/search"
	"cadence/internal/storage"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	idx, err := search.Open(filepath.Join(t.TempDir(), "index.bleve"), db)
	if err != nil {
		t.Fatalf("search.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	return New(db, idx, zerolog.Nop())
}

func TestRescanRejectsConcurrentRuns(t *testing.T) {
	l := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{t.TempDir()}}

	if !l.rescanMu.TryLock() {
		t.Fatal("expected to acquire the rescan lock in the test setup")
	}
	defer l.rescanMu.Unlock()

	_, err := l.Rescan(context.Background(), cfg)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindAlreadyInProgress {
		t.Fatalf("expected AlreadyInProgress, got %v", err)
	}
}

func TestRescanWithEmptyLibraryFindsNoFiles(t *testing.T) {
	l := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{t.TempDir()}}

	result, err := l.Rescan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if result.FilesFound != 0 {
		t.Fatalf("expected 0 files found, got %d", result.FilesFound)
	}
}

func TestConcurrentRescansAtLeastOneSucceeds(t *testing.T) {
	l := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{t.TempDir()}}

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.Rescan(context.Background(), cfg)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes == 0 {
		t.Fatal("expected at least one concurrent rescan to succeed")
	}
}

func TestStartRescanRejectsWhileLockHeld(t *testing.T) {
	l := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{t.TempDir()}}

	if !l.rescanMu.TryLock() {
		t.Fatal("expected to acquire the rescan lock in the test setup")
	}
	defer l.rescanMu.Unlock()

	err := l.StartRescan(cfg)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindAlreadyInProgress {
		t.Fatalf("expected AlreadyInProgress, got %v", err)
	}
}

// TestConcurrentStartRescanOnlyOneSucceeds pins the RPC-layer contract: of N
// concurrent library_rescan calls, exactly one returns Ok and the rest
// return AlreadyInProgress -- the lock must be acquired before StartRescan
// returns, not from inside the spawned goroutine.
func TestConcurrentStartRescanOnlyOneSucceeds(t *testing.T) {
	l := newTestLibrary(t)
	cfg := config.DaemonConfig{LibraryPaths: []string{t.TempDir()}}

	const n = 8
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			results[i] = l.StartRescan(cfg)
		}(i)
	}
	start.Done()
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var cerr *cadenceerr.Error
		if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindAlreadyInProgress {
			t.Fatalf("expected AlreadyInProgress for a loser, got %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestAnalyzeRejectsWhenDisabled(t *testing.T) {
	l := newTestLibrary(t)
	_, err := l.Analyze(context.Background(), false)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindFeatureDisabled {
		t.Fatalf("expected FeatureDisabled, got %v", err)
	}
}

func TestAnalyzeWithNoSongsIsANoop(t *testing.T) {
	l := newTestLibrary(t)
	result, err := l.Analyze(context.Background(), true)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.SongsAnalyzed != 0 {
		t.Fatalf("expected 0 songs analyzed, got %d", result.SongsAnalyzed)
	}
}

func TestReclusterWithNoAnalysesIsANoop(t *testing.T) {
	l := newTestLibrary(t)
	result, err := l.Recluster(context.Background(), config.ReclusteringConfig{KMax: 5, GapReferenceCount: 5}, 1)
	if err != nil {
		t.Fatalf("Recluster: %v", err)
	}
	if result.Collections != 0 {
		t.Fatalf("expected 0 collections with no analyses, got %d", result.Collections)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := expandHome("~/Music")
	want := filepath.Join(home, "Music")
	if got != want {
		t.Fatalf("expandHome(~/Music) = %q, want %q", got, want)
	}
}

func TestSplitNonEmptyTrimsAndDropsBlanks(t *testing.T) {
	got := splitNonEmpty("Artist A; Artist B; ", "; ")
	want := []string{"Artist A", "Artist B"}
	if len(got) != len(want) {
		t.Fatalf("splitNonEmpty = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitNonEmpty[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "x", "y"); got != "x" {
		t.Fatalf("firstNonEmpty = %q, want %q", got, "x")
	}
}

func TestContentHashStableForSameContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("same bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := contentHash(path)
	if err != nil {
		t.Fatalf("contentHash: %v", err)
	}
	h2, err := contentHash(path)
	if err != nil {
		t.Fatalf("contentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
}

func TestRemoveMissingFilesDeletesOrphans(t *testing.T) {
	l := newTestLibrary(t)
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	gone := filepath.Join(dir, "gone.mp3")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var albumID int64
	if err := l.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		artistID, err := l.db.UpsertArtist(ctx, tx, "Test Artist", "Test Artist")
		if err != nil {
			return err
		}
		albumID, err = l.db.UpsertAlbum(ctx, tx, "Test Album", artistID, nil)
		return err
	}); err != nil {
		t.Fatalf("seed album: %v", err)
	}

	for _, p := range []string{keep, gone} {
		if _, err := l.db.UpsertSong(ctx, &models.Song{
			FilePath: p, Title: "t", AlbumID: albumID, FileModified: time.Now(), ContentHash: p,
		}); err != nil {
			t.Fatalf("UpsertSong: %v", err)
		}
	}

	removed, err := l.removeMissingFiles(ctx)
	if err != nil {
		t.Fatalf("removeMissingFiles: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, err := l.db.AllSongPaths(ctx)
	if err != nil {
		t.Fatalf("AllSongPaths: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != keep {
		t.Fatalf("expected only %q to remain, got %v", keep, remaining)
	}
}
