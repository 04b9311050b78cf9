package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cadence/internal/models"
)

// UpsertArtist finds an artist by name or creates one, returning its id.
func (db *DB) UpsertArtist(ctx context.Context, tx *sql.Tx, name, sortName string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM artists WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("storage: lookup artist: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO artists (name, sort_name) VALUES (?, ?)`, name, sortName)
	if err != nil {
		return 0, fmt.Errorf("storage: insert artist: %w", err)
	}
	return res.LastInsertId()
}

// UpsertAlbum finds an album by (title, artist) or creates one.
func (db *DB) UpsertAlbum(ctx context.Context, tx *sql.Tx, title string, artistID int64, year *int) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM albums WHERE title = ? AND artist_id = ?`, title, artistID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("storage: lookup album: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO albums (title, artist_id, release_year) VALUES (?, ?, ?)`, title, artistID, year)
	if err != nil {
		return 0, fmt.Errorf("storage: insert album: %w", err)
	}
	return res.LastInsertId()
}

// FindSongByContentHash returns the song with the given content hash, if
// one exists — the scanner uses this to detect a song that moved rather
// than one that was deleted and re-added.
func (db *DB) FindSongByContentHash(ctx context.Context, hash string) (*models.Song, error) {
	return db.scanSong(ctx, `WHERE content_hash = ?`, hash)
}

// FindSongByPath returns the song at the given file path, if one exists.
func (db *DB) FindSongByPath(ctx context.Context, path string) (*models.Song, error) {
	return db.scanSong(ctx, `WHERE file_path = ?`, path)
}

func (db *DB) scanSong(ctx context.Context, where string, args ...interface{}) (*models.Song, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, title, album_id, genres, duration, track_number, disc_number,
		       release_year, file_path, extension, content_hash, file_size,
		       file_modified, date_added
		FROM songs `+where, args...)

	var s models.Song
	var genres string
	var fileModified sql.NullTime
	err := row.Scan(&s.ID, &s.Title, &s.AlbumID, &genres, &s.Duration, &s.TrackNumber,
		&s.DiscNumber, &s.ReleaseYear, &s.FilePath, &s.Extension, &s.ContentHash,
		&s.FileSize, &fileModified, &s.DateAdded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: scan song: %w", err)
	}
	if genres != "" {
		s.Genres = strings.Split(genres, "\x1f")
	}
	if fileModified.Valid {
		s.FileModified = fileModified.Time
	}
	s.ArtistIDs = db.songArtistIDs(ctx, s.ID, "song_artists")
	s.AlbumArtists = db.songArtistIDs(ctx, s.ID, "song_album_artists")
	return &s, nil
}

func (db *DB) songArtistIDs(ctx context.Context, songID int64, table string) []int64 {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT artist_id FROM %s WHERE song_id = ? ORDER BY position`, table), songID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// UpsertSong inserts a new song or updates an existing one (matched by
// file path), replacing its artist/album-artist join rows.
func (db *DB) UpsertSong(ctx context.Context, s *models.Song) (int64, error) {
	var id int64
	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		genres := strings.Join(s.Genres, "\x1f")
		_, err := tx.ExecContext(ctx, `
			INSERT INTO songs (title, album_id, genres, duration, track_number, disc_number,
			                    release_year, file_path, extension, content_hash, file_size,
			                    file_modified, date_added)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_path) DO UPDATE SET
				title=excluded.title, album_id=excluded.album_id, genres=excluded.genres,
				duration=excluded.duration, track_number=excluded.track_number,
				disc_number=excluded.disc_number, release_year=excluded.release_year,
				extension=excluded.extension, content_hash=excluded.content_hash,
				file_size=excluded.file_size, file_modified=excluded.file_modified
		`, s.Title, s.AlbumID, genres, s.Duration, s.TrackNumber, s.DiscNumber,
			s.ReleaseYear, s.FilePath, s.Extension, s.ContentHash, s.FileSize,
			s.FileModified, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("storage: upsert song: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `SELECT id FROM songs WHERE file_path = ?`, s.FilePath).Scan(&id); err != nil {
			return fmt.Errorf("storage: resolve song id: %w", err)
		}

		if err := replaceSongArtists(ctx, tx, id, "song_artists", s.ArtistIDs); err != nil {
			return err
		}
		return replaceSongArtists(ctx, tx, id, "song_album_artists", s.AlbumArtists)
	})
	return id, err
}

func replaceSongArtists(ctx context.Context, tx *sql.Tx, songID int64, table string, artistIDs []int64) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE song_id = ?`, table), songID); err != nil {
		return fmt.Errorf("storage: clear %s: %w", table, err)
	}
	for i, artistID := range artistIDs {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (song_id, artist_id, position) VALUES (?, ?, ?)`, table),
			songID, artistID, i)
		if err != nil {
			return fmt.Errorf("storage: insert %s: %w", table, err)
		}
	}
	return nil
}

// DeleteSongByPath removes a song (and its analysis, via cascade) by its
// file path. Returns whether a row was removed.
func (db *DB) DeleteSongByPath(ctx context.Context, path string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM songs WHERE file_path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("storage: delete song: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AllSongPaths returns every file_path currently recorded, for the
// scanner's removed-file sweep.
func (db *DB) AllSongPaths(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT file_path FROM songs`)
	if err != nil {
		return nil, fmt.Errorf("storage: list song paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllSongs returns every song, for full reindex/recluster passes.
func (db *DB) AllSongs(ctx context.Context) ([]models.Song, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM songs`)
	if err != nil {
		return nil, fmt.Errorf("storage: list songs: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]models.Song, 0, len(ids))
	for _, id := range ids {
		s, err := db.scanSong(ctx, `WHERE id = ?`, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// AllArtists returns every artist row, for full reindex passes.
func (db *DB) AllArtists(ctx context.Context) ([]models.Artist, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, sort_name FROM artists`)
	if err != nil {
		return nil, fmt.Errorf("storage: list artists: %w", err)
	}
	defer rows.Close()

	var out []models.Artist
	for rows.Next() {
		var a models.Artist
		var sortName sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &sortName); err != nil {
			return nil, err
		}
		a.SortName = sortName.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllAlbums returns every album row, for full reindex passes.
func (db *DB) AllAlbums(ctx context.Context) ([]models.Album, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, artist_id, release_year FROM albums`)
	if err != nil {
		return nil, fmt.Errorf("storage: list albums: %w", err)
	}
	defer rows.Close()

	var out []models.Album
	for rows.Next() {
		var a models.Album
		if err := rows.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ReleaseYear); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ArtistNames resolves a set of artist ids to names in one query, for
// composing song/album display strings without N+1 lookups.
func (db *DB) ArtistNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM artists WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve artist names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// StoreAnalysis replaces any existing analysis for songID.
func (db *DB) StoreAnalysis(ctx context.Context, songID int64, vector []float64) error {
	blob, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("storage: marshal analysis vector: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO analyses (song_id, vector, dimension) VALUES (?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET vector=excluded.vector, dimension=excluded.dimension,
			created_at=CURRENT_TIMESTAMP
	`, songID, blob, len(vector))
	if err != nil {
		return fmt.Errorf("storage: store analysis: %w", err)
	}
	return nil
}

// Analysis returns the stored feature vector for songID, if any.
func (db *DB) Analysis(ctx context.Context, songID int64) (*models.Analysis, error) {
	var blob []byte
	var createdAt time.Time
	err := db.QueryRowContext(ctx, `SELECT vector, created_at FROM analyses WHERE song_id = ?`, songID).
		Scan(&blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read analysis: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal(blob, &vec); err != nil {
		return nil, fmt.Errorf("storage: decode analysis vector: %w", err)
	}
	return &models.Analysis{SongID: songID, Vector: vec, CreatedAt: createdAt}, nil
}

// AllAnalyses returns every stored (song id, vector) pair, for clustering.
func (db *DB) AllAnalyses(ctx context.Context) ([]models.Analysis, error) {
	rows, err := db.QueryContext(ctx, `SELECT song_id, vector, created_at FROM analyses`)
	if err != nil {
		return nil, fmt.Errorf("storage: list analyses: %w", err)
	}
	defer rows.Close()

	var out []models.Analysis
	for rows.Next() {
		var a models.Analysis
		var blob []byte
		if err := rows.Scan(&a.SongID, &blob, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &a.Vector); err != nil {
			return nil, fmt.Errorf("storage: decode analysis vector: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
