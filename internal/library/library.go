// Package library runs the three maintenance jobs that mutate the whole
// collection at once -- rescan, analyze, recluster -- each guarded by its
// own try-lock so a second request for the same job fails fast instead of
// racing the first, following the job-queue/worker-pool shape the teacher
// used for metadata extraction, generalized from a DB-polling queue to a
// set of dedicated in-process jobs.
package library

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"

	"cadence/internal/cadenceerr"
	"cadence/internal/chroma"
	"cadence/internal/cluster"
	"cadence/internal/config"
	"cadence/internal/models"
	"cadence/internal/search"
	"cadence/internal/storage"
)

var supportedExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true,
}

// Library owns the maintenance jobs. Every exported method first tries to
// acquire that job's mutex with TryLock; failure to acquire means the job
// is already running and the call returns cadenceerr.AlreadyInProgress
// rather than blocking the caller or queuing a second run.
type Library struct {
	db    *storage.DB
	index *search.Index
	log   zerolog.Logger

	rescanMu    sync.Mutex
	analyzeMu   sync.Mutex
	reclusterMu sync.Mutex
}

// JobStatus reports whether each maintenance job currently holds its lock,
// without blocking and without affecting the lock itself -- it probes by
// attempting (and immediately releasing) a TryLock, so a status check never
// competes with a real job for the lock beyond a single uncontended
// acquire/release pair.
type JobStatus struct {
	RescanInProgress    bool
	AnalyzeInProgress   bool
	ReclusterInProgress bool
}

func (l *Library) JobStatus() JobStatus {
	return JobStatus{
		RescanInProgress:    !tryPeek(&l.rescanMu),
		AnalyzeInProgress:   !tryPeek(&l.analyzeMu),
		ReclusterInProgress: !tryPeek(&l.reclusterMu),
	}
}

// tryPeek reports whether mu was free, releasing it immediately if so.
func tryPeek(mu *sync.Mutex) bool {
	if !mu.TryLock() {
		return false
	}
	mu.Unlock()
	return true
}

func New(db *storage.DB, index *search.Index, log zerolog.Logger) *Library {
	return &Library{db: db, index: index, log: log.With().Str("component", "library").Logger()}
}

// RescanResult summarizes one rescan pass.
type RescanResult struct {
	FilesFound   int
	FilesAdded   int
	FilesUpdated int
	FilesRemoved int
	Duration     time.Duration
	Errors       []error
}

// Rescan walks every configured library path, upserts any new or changed
// song, and removes songs whose backing file is gone. Concurrency for tag
// reads is bounded by a small worker pool, mirroring the teacher's
// ingest-file worker loop.
func (l *Library) Rescan(ctx context.Context, cfg config.DaemonConfig) (*RescanResult, error) {
	if !l.rescanMu.TryLock() {
		return nil, cadenceerr.AlreadyInProgress("rescan")
	}
	defer l.rescanMu.Unlock()
	return l.runRescan(ctx, cfg)
}

// StartRescan acquires the rescan lock synchronously, so a caller racing
// another rescan gets AlreadyInProgress immediately rather than from inside
// a goroutine nobody is waiting on, then continues the walk itself in the
// background.
func (l *Library) StartRescan(cfg config.DaemonConfig) error {
	if !l.rescanMu.TryLock() {
		return cadenceerr.AlreadyInProgress("rescan")
	}
	go func() {
		defer l.rescanMu.Unlock()
		if _, err := l.runRescan(context.Background(), cfg); err != nil {
			l.log.Error().Err(err).Str("job", "rescan").Msg("rescan failed")
		}
	}()
	return nil
}

func (l *Library) runRescan(ctx context.Context, cfg config.DaemonConfig) (*RescanResult, error) {
	start := time.Now()
	result := &RescanResult{}
	jobLog := l.log.With().Str("job", "rescan").Logger()
	jobLog.Info().Strs("paths", cfg.LibraryPaths).Msg("rescan started")

	var files []string
	for _, root := range cfg.LibraryPaths {
		expanded := expandHome(root)
		err := filepath.WalkDir(expanded, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				result.Errors = append(result.Errors, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("library: walk %s: %w", expanded, err))
		}
	}
	result.FilesFound = len(files)

	const workers = 8
	fileChan := make(chan string, len(files))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				added, err := l.ingestFile(ctx, path, cfg)
				mu.Lock()
				if err != nil {
					result.Errors = append(result.Errors, err)
				} else if added {
					result.FilesAdded++
				} else {
					result.FilesUpdated++
				}
				mu.Unlock()
			}
		}()
	}
	for _, path := range files {
		fileChan <- path
	}
	close(fileChan)
	wg.Wait()

	removed, err := l.removeMissingFiles(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.FilesRemoved = removed

	if err := l.index.RebuildIndex(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("library: rebuild search index: %w", err))
	}

	result.Duration = time.Since(start)
	jobLog.Info().
		Int("found", result.FilesFound).
		Int("added", result.FilesAdded).
		Int("updated", result.FilesUpdated).
		Int("removed", result.FilesRemoved).
		Dur("duration", result.Duration).
		Msg("rescan completed")
	return result, nil
}

func (l *Library) ingestFile(ctx context.Context, path string, cfg config.DaemonConfig) (added bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("library: stat %s: %w", path, err)
	}

	existing, err := l.db.FindSongByPath(ctx, path)
	if err != nil {
		return false, fmt.Errorf("library: lookup %s: %w", path, err)
	}
	if existing != nil && !info.ModTime().After(existing.FileModified) {
		return false, nil
	}

	hash, err := contentHash(path)
	if err != nil {
		return false, fmt.Errorf("library: hash %s: %w", path, err)
	}

	if dup, err := l.db.FindSongByContentHash(ctx, hash); err == nil && dup != nil && dup.FilePath != path {
		if _, statErr := os.Stat(dup.FilePath); existing == nil && os.IsNotExist(statErr) {
			// the file moved: keep its row, and so its id, under the new path
			if _, err := l.db.ExecContext(ctx, `UPDATE songs SET file_path = ? WHERE id = ?`, path, dup.ID); err != nil {
				return false, fmt.Errorf("library: record move of %s: %w", path, err)
			}
			return false, nil
		}
		switch cfg.ConflictResolution {
		case config.ConflictSkip:
			return false, nil
		case config.ConflictOverwrite:
			// fall through and re-upsert at the new path below
		case config.ConflictMerge:
			// the existing record already represents this content; nothing
			// to add beyond recognizing the duplicate.
			return false, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("library: open %s: %w", path, err)
	}
	meta, tagErr := tag.ReadFrom(f)
	f.Close()
	if tagErr != nil {
		return false, fmt.Errorf("library: read tags %s: %w", path, tagErr)
	}

	duration := probeDuration(ctx, path)

	song := &models.Song{
		Title:        firstNonEmpty(meta.Title(), filepath.Base(path)),
		Genres:       splitNonEmpty(meta.Genre(), cfg.GenreSeparator),
		Duration:     duration,
		FilePath:     path,
		Extension:    strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		ContentHash:  hash,
		FileSize:     info.Size(),
		FileModified: info.ModTime(),
		DateAdded:    time.Now().UTC(),
	}
	if track, _ := meta.Track(); track > 0 {
		song.TrackNumber = &track
	}
	if disc, _ := meta.Disc(); disc > 0 {
		song.DiscNumber = &disc
	}
	if year := meta.Year(); year > 0 {
		song.ReleaseYear = &year
	}

	artistNames := splitNonEmpty(meta.Artist(), cfg.ArtistSeparator)
	albumArtistNames := splitNonEmpty(meta.AlbumArtist(), cfg.ArtistSeparator)
	if len(albumArtistNames) == 0 {
		albumArtistNames = artistNames
	}

	artistIDs, err := l.resolveArtists(ctx, artistNames)
	if err != nil {
		return false, err
	}
	albumArtistIDs, err := l.resolveArtists(ctx, albumArtistNames)
	if err != nil {
		return false, err
	}
	song.ArtistIDs = artistIDs
	song.AlbumArtists = albumArtistIDs

	albumTitle := firstNonEmpty(meta.Album(), "Unknown Album")
	primaryArtist := int64(0)
	if len(albumArtistIDs) > 0 {
		primaryArtist = albumArtistIDs[0]
	}
	albumID, err := l.upsertAlbum(ctx, albumTitle, primaryArtist, song.ReleaseYear)
	if err != nil {
		return false, err
	}
	song.AlbumID = albumID

	wasNew := existing == nil
	if _, err := l.db.UpsertSong(ctx, song); err != nil {
		return false, fmt.Errorf("library: upsert %s: %w", path, err)
	}
	return wasNew, nil
}

func (l *Library) resolveArtists(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	err := l.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			id, err := l.db.UpsertArtist(ctx, tx, name, name)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

func (l *Library) upsertAlbum(ctx context.Context, title string, artistID int64, year *int) (int64, error) {
	var id int64
	err := l.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = l.db.UpsertAlbum(ctx, tx, title, artistID, year)
		return err
	})
	return id, err
}

func (l *Library) removeMissingFiles(ctx context.Context) (int, error) {
	paths, err := l.db.AllSongPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("library: list paths: %w", err)
	}
	removed := 0
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if ok, err := l.db.DeleteSongByPath(ctx, path); err == nil && ok {
				removed++
			}
		}
	}
	return removed, nil
}

func probeDuration(ctx context.Context, path string) float64 {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return 0
	}
	return data.Format.DurationSeconds
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AnalyzeResult summarizes one analyze pass.
type AnalyzeResult struct {
	SongsAnalyzed int
	Errors        []error
}

// Analyze extracts chroma feature vectors for every song that doesn't
// already have one stored, and stores each vector with StoreAnalysis; the
// search index picks the vectors up on its next RebuildIndex.
func (l *Library) Analyze(ctx context.Context, enabled bool) (*AnalyzeResult, error) {
	if !enabled {
		return nil, cadenceerr.FeatureDisabled("analysis is disabled in configuration")
	}
	if !l.analyzeMu.TryLock() {
		return nil, cadenceerr.AlreadyInProgress("analyze")
	}
	defer l.analyzeMu.Unlock()
	return l.runAnalyze(ctx)
}

// StartAnalyze acquires the analyze lock synchronously and, once acquired,
// runs the analysis pass itself in the background.
func (l *Library) StartAnalyze(enabled bool) error {
	if !enabled {
		return cadenceerr.FeatureDisabled("analysis is disabled in configuration")
	}
	if !l.analyzeMu.TryLock() {
		return cadenceerr.AlreadyInProgress("analyze")
	}
	go func() {
		defer l.analyzeMu.Unlock()
		if _, err := l.runAnalyze(context.Background()); err != nil {
			l.log.Error().Err(err).Str("job", "analyze").Msg("analyze failed")
		}
	}()
	return nil
}

func (l *Library) runAnalyze(ctx context.Context) (*AnalyzeResult, error) {
	jobLog := l.log.With().Str("job", "analyze").Logger()
	result := &AnalyzeResult{}

	songs, err := l.db.AllSongs(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	existing, err := l.db.AllAnalyses(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	analyzed := make(map[int64]bool, len(existing))
	for _, a := range existing {
		analyzed[a.SongID] = true
	}

	for _, song := range songs {
		if analyzed[song.ID] {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					result.Errors = append(result.Errors, fmt.Errorf("library: analyze %s: panic: %v", song.FilePath, r))
				}
			}()
			pcm, err := decodeMonoPCM(song.FilePath)
			if err != nil {
				result.Errors = append(result.Errors, err)
				return
			}
			vector := chroma.Extract(pcm)
			if err := l.db.StoreAnalysis(ctx, song.ID, vector); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("library: store analysis %s: %w", song.FilePath, err))
				return
			}
			result.SongsAnalyzed++
		}()
	}

	jobLog.Info().Int("analyzed", result.SongsAnalyzed).Int("errors", len(result.Errors)).Msg("analyze completed")
	return result, nil
}

// ReclusterResult summarizes one recluster pass.
type ReclusterResult struct {
	Collections int
	K           int
}

// Recluster regenerates the collection set from every stored analysis
// vector using the configured projection and clustering method.
func (l *Library) Recluster(ctx context.Context, cfg config.ReclusteringConfig, seed uint64) (*ReclusterResult, error) {
	if !l.reclusterMu.TryLock() {
		return nil, cadenceerr.AlreadyInProgress("recluster")
	}
	defer l.reclusterMu.Unlock()
	return l.runRecluster(ctx, cfg, seed)
}

// StartRecluster acquires the recluster lock synchronously and, once
// acquired, runs the clustering pass itself in the background.
func (l *Library) StartRecluster(cfg config.ReclusteringConfig, seed uint64) error {
	if !l.reclusterMu.TryLock() {
		return cadenceerr.AlreadyInProgress("recluster")
	}
	go func() {
		defer l.reclusterMu.Unlock()
		if _, err := l.runRecluster(context.Background(), cfg, seed); err != nil {
			l.log.Error().Err(err).Str("job", "recluster").Msg("recluster failed")
		}
	}()
	return nil
}

func (l *Library) runRecluster(ctx context.Context, cfg config.ReclusteringConfig, seed uint64) (*ReclusterResult, error) {
	jobLog := l.log.With().Str("job", "recluster").Logger()

	analyses, err := l.db.AllAnalyses(ctx)
	if err != nil {
		return nil, cadenceerr.Storage(err)
	}
	if len(analyses) == 0 {
		return &ReclusterResult{}, nil
	}

	matrix := cluster.NewMatrix(len(analyses), cluster.NumberFeatures)
	songIDs := make([]int64, len(analyses))
	for i, a := range analyses {
		songIDs[i] = a.SongID
		for j, v := range a.Vector {
			matrix.Set(i, j, v)
		}
	}

	projection := cluster.ProjectionPCA
	switch cfg.ProjectionMethod {
	case "none":
		projection = cluster.ProjectionNone
	case "tsne":
		projection = cluster.ProjectionTSNE
	}
	method := cluster.ClusteringKMeans
	if cfg.ClusteringMethod == "gmm" {
		method = cluster.ClusteringGMM
	}

	notInit, err := cluster.New(matrix, cfg.KMax, cfg.GapReferenceCount, method, projection, seed)
	if err != nil {
		return nil, cadenceerr.Clustering(err)
	}
	initialized, err := notInit.Initialize()
	if err != nil {
		return nil, cadenceerr.Clustering(err)
	}
	finished := initialized.Cluster()

	groups, err := cluster.Group(finished, songIDs)
	if err != nil {
		return nil, cadenceerr.Clustering(err)
	}

	collections := make([]models.Collection, 0, len(groups))
	for i, group := range groups {
		collections = append(collections, models.Collection{
			Label:   fmt.Sprintf("Collection %d", i+1),
			SongIDs: group,
		})
	}

	if err := l.db.ReplaceCollections(ctx, collections); err != nil {
		return nil, cadenceerr.Storage(err)
	}

	jobLog.Info().Int("collections", len(collections)).Int("k", finished.K()).Msg("recluster completed")
	return &ReclusterResult{Collections: len(collections), K: finished.K()}, nil
}
