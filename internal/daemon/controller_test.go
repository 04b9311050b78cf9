package daemon

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"cadence/internal/audio"
	"cadence/internal/cadenceerr"
	"cadence/internal/config"
	"cadence/internal/library"
	"cadence/internal/models"
	"cadence/internal/search"
	"cadence/internal/storage"
)

// fakeSink and fakeDecoder let the kernel run for real without touching an
// actual output device or the filesystem.
type fakeSink struct{}

func (fakeSink) Init(beep.SampleRate, int) error { return nil }
func (fakeSink) Play(beep.Streamer)               {}
func (fakeSink) Clear()                           {}
func (fakeSink) Lock()                            {}
func (fakeSink) Unlock()                          {}
func (fakeSink) Close() error                     { return nil }

type fakeDecoder struct{ total int }

func (d *fakeDecoder) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (d *fakeDecoder) Err() error                               { return nil }
func (d *fakeDecoder) Len() int                                 { return d.total }
func (d *fakeDecoder) Position() int                            { return 0 }
func (d *fakeDecoder) Seek(int) error                           { return nil }
func (d *fakeDecoder) Close() error                             { return nil }
func (d *fakeDecoder) Format() beep.Format {
	return beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
}

func newTestController(t *testing.T) (*Controller, *storage.DB) {
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

	lib := library.New(db, idx, zerolog.Nop())

	kernel := audio.NewKernel(fakeSink{}, func(path string) (audio.Decoder, error) {
		return &fakeDecoder{total: 44100 * 3}, nil
	}, zerolog.Nop(), 8)
	go kernel.Run()
	t.Cleanup(func() {
		done := make(chan struct{})
		kernel.Commands <- audio.Shutdown{Done: done}
		<-done
	})

	cfg := config.Snapshot{Daemon: config.DaemonConfig{EnableAnalysis: true}}
	return New(db, cfg, lib, idx, kernel, zerolog.Nop()), db
}

func insertTestSong(t *testing.T, db *storage.DB, path, title string) int64 {
	t.Helper()
	ctx := context.Background()

	var albumID int64
	if err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		artistID, err := db.UpsertArtist(ctx, tx, "Test Artist", "Test Artist")
		if err != nil {
			return err
		}
		albumID, err = db.UpsertAlbum(ctx, tx, "Test Album", artistID, nil)
		return err
	}); err != nil {
		t.Fatalf("seed album: %v", err)
	}

	id, err := db.UpsertSong(ctx, &models.Song{
		Title:        title,
		AlbumID:      albumID,
		FilePath:     path,
		Extension:    "mp3",
		ContentHash:  path,
		FileModified: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertSong: %v", err)
	}
	return id
}

func TestPingReturnsPong(t *testing.T) {
	ctrl, _ := newTestController(t)
	msg, err := ctrl.Ping(context.Background())
	if err != nil || msg != "pong" {
		t.Fatalf("Ping() = %q, %v, want pong, nil", msg, err)
	}
}

func TestShutdownClosesQuitAfterDelay(t *testing.T) {
	ctrl, _ := newTestController(t)
	if err := ctrl.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-ctrl.Quit():
		t.Fatal("Quit closed before the scheduled delay elapsed")
	case <-time.After(200 * time.Millisecond):
	}
	select {
	case <-ctrl.Quit():
	case <-time.After(2 * time.Second):
		t.Fatal("Quit was never closed")
	}
}

func TestQueueAddSongRejectsUnknownID(t *testing.T) {
	ctrl, _ := newTestController(t)
	err := ctrl.QueueAddSong(context.Background(), 999)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestQueueAddSongThenStateReflectsIt(t *testing.T) {
	ctrl, db := newTestController(t)
	id := insertTestSong(t, db, "/music/a.mp3", "Track A")

	if err := ctrl.QueueAddSong(context.Background(), id); err != nil {
		t.Fatalf("QueueAddSong: %v", err)
	}

	st, err := ctrl.StateQueue(context.Background())
	if err != nil {
		t.Fatalf("StateQueue: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", st.Len())
	}
}

func TestPlaylistNewReturnsExistedOnSecondCall(t *testing.T) {
	ctrl, _ := newTestController(t)

	p1, existed1, err := ctrl.PlaylistNew(context.Background(), "Favorites")
	if err != nil || existed1 {
		t.Fatalf("first PlaylistNew: %v existed=%v", err, existed1)
	}

	p2, existed2, err := ctrl.PlaylistNew(context.Background(), "Favorites")
	if err != nil {
		t.Fatalf("second PlaylistNew: %v", err)
	}
	if !existed2 {
		t.Fatal("expected existed=true on second call with the same name")
	}
	if p2.ID != p1.ID {
		t.Fatalf("expected the same playlist id back, got %d and %d", p1.ID, p2.ID)
	}
}

func TestDynamicPlaylistNewRejectsBadQuery(t *testing.T) {
	ctrl, _ := newTestController(t)
	_, err := ctrl.DynamicPlaylistNew(context.Background(), "broken", "title = ")
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestDynamicPlaylistEvaluateMatchesStoredQuery(t *testing.T) {
	ctrl, db := newTestController(t)
	insertTestSong(t, db, "/music/b.mp3", "Ballad")

	p, err := ctrl.DynamicPlaylistNew(context.Background(), "ballads", `title = "Ballad"`)
	if err != nil {
		t.Fatalf("DynamicPlaylistNew: %v", err)
	}

	ids, err := ctrl.DynamicPlaylistEvaluate(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("DynamicPlaylistEvaluate: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly one match, got %v", ids)
	}
}

func TestRadioGetSimilarRequiresAnalysis(t *testing.T) {
	ctrl, db := newTestController(t)
	id := insertTestSong(t, db, "/music/c.mp3", "No Analysis Yet")

	_, err := ctrl.RadioGetSimilar(context.Background(), []int64{id}, 5)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRadioGetSimilarRejectsWhenAnalysisDisabled(t *testing.T) {
	ctrl, db := newTestController(t)
	id := insertTestSong(t, db, "/music/c2.mp3", "Also No Analysis")
	ctrl.cfg.Daemon.EnableAnalysis = false

	_, err := ctrl.RadioGetSimilar(context.Background(), []int64{id}, 5)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindFeatureDisabled {
		t.Fatalf("expected FeatureDisabled, got %v", err)
	}
}

func TestRadioGetSimilarRejectsNoSeeds(t *testing.T) {
	ctrl, _ := newTestController(t)
	_, err := ctrl.RadioGetSimilar(context.Background(), nil, 5)
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestLibraryJobStatusIdleBeforeAnyJob(t *testing.T) {
	ctrl, _ := newTestController(t)

	status := ctrl.LibraryJobStatus(context.Background())
	if status.RescanInProgress {
		t.Fatal("expected rescan to be idle before any job runs")
	}
}

func TestLibraryAnalyzeRespectsConfigToggle(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctrl.cfg.Daemon.EnableAnalysis = false

	_, err := ctrl.LibraryAnalyze(context.Background())
	var cerr *cadenceerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cadenceerr.KindFeatureDisabled {
		t.Fatalf("expected FeatureDisabled, got %v", err)
	}
}
