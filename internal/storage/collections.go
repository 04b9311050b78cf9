package storage

import (
	"context"
	"database/sql"
	"fmt"

	"cadence/internal/models"
)

// ReplaceCollections wholesale-replaces every collection with newly
// clustered ones, inside a single transaction — collections are never
// mutated incrementally, only regenerated on recluster.
func (db *DB) ReplaceCollections(ctx context.Context, collections []models.Collection) error {
	return db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_songs`); err != nil {
			return fmt.Errorf("storage: clear collection_songs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM collections`); err != nil {
			return fmt.Errorf("storage: clear collections: %w", err)
		}
		for _, c := range collections {
			res, err := tx.ExecContext(ctx, `INSERT INTO collections (label) VALUES (?)`, c.Label)
			if err != nil {
				return fmt.Errorf("storage: insert collection: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for _, songID := range c.SongIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO collection_songs (collection_id, song_id) VALUES (?, ?)`, id, songID); err != nil {
					return fmt.Errorf("storage: insert collection_songs: %w", err)
				}
			}
		}
		return nil
	})
}

// Collections returns every collection with its member song ids.
func (db *DB) Collections(ctx context.Context) ([]models.Collection, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, label FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list collections: %w", err)
	}
	var out []models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		memberRows, err := db.QueryContext(ctx,
			`SELECT song_id FROM collection_songs WHERE collection_id = ?`, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("storage: list collection members: %w", err)
		}
		for memberRows.Next() {
			var id int64
			if err := memberRows.Scan(&id); err != nil {
				memberRows.Close()
				return nil, err
			}
			out[i].SongIDs = append(out[i].SongIDs, id)
		}
		memberRows.Close()
		out[i].SongCount = len(out[i].SongIDs)
	}
	return out, nil
}

// CreatePlaylist creates an empty playlist and returns it.
func (db *DB) CreatePlaylist(ctx context.Context, name string) (*models.Playlist, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO playlists (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("storage: create playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.Playlist(ctx, id)
}

// Playlist returns a playlist and its ordered song ids.
func (db *DB) Playlist(ctx context.Context, id int64) (*models.Playlist, error) {
	var p models.Playlist
	err := db.QueryRowContext(ctx, `SELECT id, name, created_at FROM playlists WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read playlist: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT s.id, s.duration FROM playlist_songs ps JOIN songs s ON s.id = ps.song_id
		 WHERE ps.playlist_id = ? ORDER BY ps.position`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: list playlist songs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var songID int64
		var duration float64
		if err := rows.Scan(&songID, &duration); err != nil {
			return nil, err
		}
		p.SongIDs = append(p.SongIDs, songID)
		p.RuntimeS += int64(duration)
	}
	p.SongCount = len(p.SongIDs)
	return &p, rows.Err()
}

// AddPlaylistSong appends a song to the end of a playlist.
func (db *DB) AddPlaylistSong(ctx context.Context, playlistID, songID int64) error {
	var nextPos int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_songs WHERE playlist_id = ?`, playlistID).
		Scan(&nextPos)
	if err != nil {
		return fmt.Errorf("storage: next playlist position: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`,
		playlistID, songID, nextPos)
	if err != nil {
		return fmt.Errorf("storage: add playlist song: %w", err)
	}
	return nil
}

// CreateDynamicPlaylist stores a dynamic playlist's name and query text.
// Callers must have already validated queryText with query.Parse.
func (db *DB) CreateDynamicPlaylist(ctx context.Context, name, queryText string) (*models.DynamicPlaylist, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO dynamic_playlists (name, query_text) VALUES (?, ?)`, name, queryText)
	if err != nil {
		return nil, fmt.Errorf("storage: create dynamic playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.DynamicPlaylist(ctx, id)
}

// DynamicPlaylist returns a dynamic playlist's stored definition (not its
// evaluated membership — see EvaluateQuery for evaluation).
func (db *DB) DynamicPlaylist(ctx context.Context, id int64) (*models.DynamicPlaylist, error) {
	var p models.DynamicPlaylist
	err := db.QueryRowContext(ctx,
		`SELECT id, name, query_text, created_at FROM dynamic_playlists WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.QueryText, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read dynamic playlist: %w", err)
	}
	return &p, nil
}
