// Package daemon implements Controller, the process-wide dispatcher every
// RPC handler calls through. It holds exactly the resources spec'd as
// shared: a database handle, an immutable configuration snapshot, and a
// send handle to the audio kernel -- the kernel's queue and output device
// themselves never leave the kernel goroutine.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cadence/internal/audio"
	"cadence/internal/cadenceerr"
	"cadence/internal/config"
	"cadence/internal/library"
	"cadence/internal/models"
	"cadence/internal/query"
	"cadence/internal/queue"
	"cadence/internal/search"
	"cadence/internal/storage"
)

// Controller is the single point every transport binds to. Every method
// is safe to call from any goroutine: it either touches the database (safe
// for concurrent use by database/sql), reads the immutable config
// snapshot, or sends a copied value down the kernel's command channel.
type Controller struct {
	db      *storage.DB
	cfg     config.Snapshot
	lib     *library.Library
	index   *search.Index
	kernel  *audio.Kernel
	log     zerolog.Logger
	quit    chan struct{}
}

// New wires a Controller over already-constructed collaborators. Nothing
// here opens a file or a socket; cmd/cadenced does that before calling in.
func New(db *storage.DB, cfg config.Snapshot, lib *library.Library, index *search.Index, kernel *audio.Kernel, log zerolog.Logger) *Controller {
	return &Controller{
		db:     db,
		cfg:    cfg,
		lib:    lib,
		index:  index,
		kernel: kernel,
		log:    log.With().Str("component", "controller").Logger(),
		quit:   make(chan struct{}),
	}
}

// Quit is closed once Shutdown has scheduled the exit; cmd/cadenced
// selects on it to know when to stop serving.
func (c *Controller) Quit() <-chan struct{} { return c.quit }

// Ping is the observability probe every transport exposes at the root.
func (c *Controller) Ping(context.Context) (string, error) { return "pong", nil }

// Shutdown schedules process exit after a short delay so the kernel has
// time to flush and in-flight requests have time to finish, and returns
// immediately -- fire-and-forget, per the RPC contract.
func (c *Controller) Shutdown(context.Context) error {
	go func() {
		time.Sleep(time.Second)
		close(c.quit)
	}()
	return nil
}

// --- library_* -------------------------------------------------------

// LibraryRescan acquires the rescan lock synchronously so two concurrent
// calls never both report success: the loser gets AlreadyInProgress back
// from this call, not from a goroutine nobody observes. The winner's walk
// then continues in the background, per the RPC contract.
func (c *Controller) LibraryRescan(ctx context.Context) (*library.RescanResult, error) {
	if err := c.lib.StartRescan(c.cfg.Daemon); err != nil {
		return nil, err
	}
	return &library.RescanResult{}, nil
}

// LibraryAnalyze mirrors LibraryRescan: the lock is acquired before this
// call returns, so a second concurrent analyze request is rejected
// synchronously instead of racing the first inside a goroutine.
func (c *Controller) LibraryAnalyze(ctx context.Context) (*library.AnalyzeResult, error) {
	if err := c.lib.StartAnalyze(c.cfg.Daemon.EnableAnalysis); err != nil {
		return nil, err
	}
	return &library.AnalyzeResult{}, nil
}

// LibraryRecluster mirrors LibraryRescan and LibraryAnalyze.
func (c *Controller) LibraryRecluster(ctx context.Context, seed uint64) (*library.ReclusterResult, error) {
	if err := c.lib.StartRecluster(c.cfg.Reclustering, seed); err != nil {
		return nil, err
	}
	return &library.ReclusterResult{}, nil
}

// LibraryJobStatus backs the *_in_progress() status probes: a non-blocking
// read of each maintenance job's lock state.
func (c *Controller) LibraryJobStatus(ctx context.Context) library.JobStatus {
	return c.lib.JobStatus()
}

func (c *Controller) LibraryStats(ctx context.Context) (map[string]int, error) {
	songs, err := c.db.AllSongs(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	artists, err := c.db.AllArtists(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	albums, err := c.db.AllAlbums(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return map[string]int{"songs": len(songs), "artists": len(artists), "albums": len(albums)}, nil
}

func (c *Controller) LibraryArtists(ctx context.Context) ([]models.Artist, error) {
	artists, err := c.db.AllArtists(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return artists, nil
}

func (c *Controller) LibraryAlbums(ctx context.Context) ([]models.Album, error) {
	albums, err := c.db.AllAlbums(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return albums, nil
}

func (c *Controller) LibrarySongs(ctx context.Context) ([]models.Song, error) {
	songs, err := c.db.AllSongs(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return songs, nil
}

// --- state_* -----------------------------------------------------------

// StateAudio issues a one-shot request to the kernel and awaits its reply
// on a dedicated single-use channel -- ordering between concurrent
// snapshots is not guaranteed, but each is internally consistent.
func (c *Controller) StateAudio(ctx context.Context) (audio.State, error) {
	reply := make(chan audio.State, 1)
	select {
	case c.kernel.Commands <- audio.StateRequest{Reply: reply}:
	case <-ctx.Done():
		return audio.State{}, cadenceerr.Internal(ctx.Err())
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return audio.State{}, cadenceerr.Internal(ctx.Err())
	}
}

func (c *Controller) StateQueue(ctx context.Context) (queue.Queue, error) {
	st, err := c.StateAudio(ctx)
	if err != nil {
		return queue.Queue{}, err
	}
	return st.Queue, nil
}

// CurrentSong reports the song at the kernel's cursor, if any.
func (c *Controller) CurrentSong(ctx context.Context) (*queue.Song, error) {
	st, err := c.StateAudio(ctx)
	if err != nil {
		return nil, err
	}
	song, ok := st.Queue.Current()
	if !ok {
		return nil, nil
	}
	return &song, nil
}

// --- search --------------------------------------------------------------

func (c *Controller) Search(ctx context.Context, q string, limit int) (search.Results, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := c.index.Search(ctx, q, limit)
	if err != nil {
		return search.Results{}, cadenceerr.Internal(err)
	}
	return results, nil
}

// --- queue_* / playback_* / rand_* ---------------------------------------

func (c *Controller) QueueAddSong(ctx context.Context, songID int64) error {
	s, err := c.songByID(ctx, songID)
	if err != nil {
		return err
	}
	return c.send(ctx, audio.AddToQueue{Songs: []queue.Song{*s}})
}

func (c *Controller) QueueAddMany(ctx context.Context, songIDs []int64) error {
	songs := make([]queue.Song, 0, len(songIDs))
	for _, id := range songIDs {
		s, err := c.songByID(ctx, id)
		if err != nil {
			return err
		}
		songs = append(songs, *s)
	}
	return c.send(ctx, audio.AddToQueue{Songs: songs})
}

func (c *Controller) QueueRemoveRange(ctx context.Context, start, end int) error {
	return c.send(ctx, audio.RemoveFromQueue{Start: start, End: end})
}

func (c *Controller) QueuePlayAt(ctx context.Context, index int) error {
	return c.send(ctx, audio.PlayAtIndex{Index: index})
}

func (c *Controller) PlaybackPause(ctx context.Context) error  { return c.send(ctx, audio.Pause{}) }
func (c *Controller) PlaybackResume(ctx context.Context) error { return c.send(ctx, audio.Resume{}) }
func (c *Controller) PlaybackStop(ctx context.Context) error   { return c.send(ctx, audio.Stop{}) }
func (c *Controller) PlaybackNext(ctx context.Context) error   { return c.send(ctx, audio.Next{}) }
func (c *Controller) PlaybackPrevious(ctx context.Context) error {
	return c.send(ctx, audio.Previous{})
}
func (c *Controller) PlaybackSeek(ctx context.Context, positionSec float64) error {
	return c.send(ctx, audio.Seek{PositionSec: positionSec})
}
func (c *Controller) PlaybackSetVolume(ctx context.Context, volume float64) error {
	return c.send(ctx, audio.SetVolume{Volume: volume})
}
func (c *Controller) PlaybackSetRepeatMode(ctx context.Context, mode queue.RepeatMode) error {
	return c.send(ctx, audio.SetRepeatMode{Mode: mode})
}
func (c *Controller) RandShuffle(ctx context.Context, seed int64) error {
	return c.send(ctx, audio.Shuffle{Seed: seed})
}

func (c *Controller) send(ctx context.Context, cmd audio.Command) error {
	select {
	case c.kernel.Commands <- cmd:
		return nil
	case <-ctx.Done():
		return cadenceerr.Internal(ctx.Err())
	}
}

func (c *Controller) songByID(ctx context.Context, id int64) (*queue.Song, error) {
	songs, err := c.db.AllSongs(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	for _, s := range songs {
		if s.ID == id {
			return &queue.Song{ID: s.ID, Title: s.Title, Path: s.FilePath}, nil
		}
	}
	return nil, cadenceerr.NotFound(fmt.Sprintf("song %d not found", id))
}

// --- playlist_* ------------------------------------------------------------

// PlaylistNew creates a playlist, or returns the id of an existing one with
// the exact same name -- the AlreadyExists branch of the RPC contract,
// surfaced here as a boolean rather than an error since it's not a failure.
func (c *Controller) PlaylistNew(ctx context.Context, name string) (playlist *models.Playlist, existed bool, err error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM playlists WHERE name = ?`, name)
	if err != nil {
		return nil, false, cadenceerr.Storage(err)
	}
	if rows.Next() {
		var id int64
		scanErr := rows.Scan(&id)
		rows.Close()
		if scanErr != nil {
			return nil, false, cadenceerr.Storage(scanErr)
		}
		p, err := c.db.Playlist(ctx, id)
		if err != nil {
			return nil, false, cadenceerr.Storage(err)
		}
		return p, true, nil
	}
	rows.Close()

	p, err := c.db.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, false, cadenceerr.Storage(err)
	}
	return p, false, nil
}

func (c *Controller) PlaylistGet(ctx context.Context, id int64) (*models.Playlist, error) {
	p, err := c.db.Playlist(ctx, id)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	if p == nil {
		return nil, cadenceerr.NotFound(fmt.Sprintf("playlist %d not found", id))
	}
	return p, nil
}

func (c *Controller) PlaylistAddSong(ctx context.Context, playlistID, songID int64) error {
	if err := c.db.AddPlaylistSong(ctx, playlistID, songID); err != nil {
		return cadenceerr.Storage(err)
	}
	return nil
}

// DynamicPlaylistNew parses and stores a dynamic playlist; an unparseable
// query is a hard InvalidArgument error and nothing is created.
func (c *Controller) DynamicPlaylistNew(ctx context.Context, name, queryText string) (*models.DynamicPlaylist, error) {
	if _, err := query.Parse(queryText); err != nil {
		return nil, cadenceerr.InvalidArgument(fmt.Sprintf("invalid query: %v", err))
	}
	p, err := c.db.CreateDynamicPlaylist(ctx, name, queryText)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return p, nil
}

// DynamicPlaylistEvaluate recomputes a dynamic playlist's membership
// against the current song table -- membership is never stored.
func (c *Controller) DynamicPlaylistEvaluate(ctx context.Context, id int64) ([]int64, error) {
	p, err := c.db.DynamicPlaylist(ctx, id)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	if p == nil {
		return nil, cadenceerr.NotFound(fmt.Sprintf("dynamic playlist %d not found", id))
	}
	clause, err := query.Parse(p.QueryText)
	if err != nil {
		return nil, cadenceerr.Internal(fmt.Errorf("stored query no longer parses: %w", err))
	}
	ids, err := c.db.EvaluateQuery(ctx, clause)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return ids, nil
}

// --- collection_* ------------------------------------------------------

func (c *Controller) CollectionList(ctx context.Context) ([]models.Collection, error) {
	collections, err := c.db.Collections(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	return collections, nil
}

// --- radio_* -------------------------------------------------------------

// RadioGetSimilar computes the average feature vector of the seed songs
// and returns up to n nearest songs by analysis distance, excluding the
// seeds themselves.
func (c *Controller) RadioGetSimilar(ctx context.Context, seedSongIDs []int64, n int) ([]int64, error) {
	if !c.cfg.Daemon.EnableAnalysis {
		return nil, cadenceerr.FeatureDisabled("analysis is disabled in configuration")
	}
	if len(seedSongIDs) == 0 {
		return nil, cadenceerr.InvalidArgument("radio_get_similar requires at least one seed song")
	}

	var sum []float64
	found := 0
	exclude := make(map[int64]bool, len(seedSongIDs))
	for _, id := range seedSongIDs {
		exclude[id] = true
		a, err := c.db.Analysis(ctx, id)
		if err != nil {
			return nil, cadenceerr.Storage(err)
		}
		if a == nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(a.Vector))
		}
		for i, v := range a.Vector {
			sum[i] += v
		}
		found++
	}
	if found == 0 {
		return nil, cadenceerr.NotFound("none of the seed songs have an analysis yet")
	}
	for i := range sum {
		sum[i] /= float64(found)
	}

	if n <= 0 {
		n = 20
	}
	ids, err := c.index.SimilarByVector(ctx, sum, n, exclude)
	if err != nil {
		return nil, cadenceerr.Internal(err)
	}
	return ids, nil
}

// Health reports whether the database is reachable -- backs an
// operational health probe distinct from the lightweight ping().
func (c *Controller) Health(ctx context.Context) error {
	if err := c.db.Health(ctx); err != nil {
		return cadenceerr.Storage(err)
	}
	return nil
}
