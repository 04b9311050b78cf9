package storage

import "cadence/internal/migrations"

// ScopeLibrary is the migration scope covering every table this daemon
// owns. A future on-disk format change adds a new step here rather than
// editing one in place.
const ScopeLibrary = "library"

// LibraryMigrations is the full, ordered migration set for ScopeLibrary.
var LibraryMigrations = []migrations.Migration{
	{
		Comment: "create artists, albums, songs and their join tables",
		UpSQL: `
			CREATE TABLE artists (
				id       INTEGER PRIMARY KEY AUTOINCREMENT,
				name     TEXT NOT NULL,
				sort_name TEXT NOT NULL DEFAULT ''
			);
			CREATE TABLE albums (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				title        TEXT NOT NULL,
				artist_id    INTEGER NOT NULL REFERENCES artists(id),
				release_year INTEGER
			);
			CREATE TABLE songs (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				title         TEXT NOT NULL,
				album_id      INTEGER NOT NULL REFERENCES albums(id),
				genres        TEXT NOT NULL DEFAULT '',
				duration      REAL NOT NULL DEFAULT 0,
				track_number  INTEGER,
				disc_number   INTEGER,
				release_year  INTEGER,
				file_path     TEXT NOT NULL UNIQUE,
				extension     TEXT NOT NULL DEFAULT '',
				content_hash  TEXT NOT NULL DEFAULT '',
				file_size     INTEGER NOT NULL DEFAULT 0,
				file_modified TIMESTAMP,
				date_added    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX idx_songs_content_hash ON songs(content_hash);
			CREATE TABLE song_artists (
				song_id   INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
				artist_id INTEGER NOT NULL REFERENCES artists(id),
				position  INTEGER NOT NULL,
				PRIMARY KEY (song_id, position)
			);
			CREATE TABLE song_album_artists (
				song_id   INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
				artist_id INTEGER NOT NULL REFERENCES artists(id),
				position  INTEGER NOT NULL,
				PRIMARY KEY (song_id, position)
			);
		`,
		DownSQL: `
			DROP TABLE song_album_artists;
			DROP TABLE song_artists;
			DROP TABLE songs;
			DROP TABLE albums;
			DROP TABLE artists;
		`,
	},
	{
		Comment: "playlists and dynamic playlists",
		UpSQL: `
			CREATE TABLE playlists (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE playlist_songs (
				playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
				song_id     INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
				position    INTEGER NOT NULL,
				PRIMARY KEY (playlist_id, position)
			);
			CREATE TABLE dynamic_playlists (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL,
				query_text TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
		DownSQL: `
			DROP TABLE dynamic_playlists;
			DROP TABLE playlist_songs;
			DROP TABLE playlists;
		`,
	},
	{
		Comment: "analyses and clusterer-owned collections",
		UpSQL: `
			CREATE TABLE analyses (
				song_id    INTEGER PRIMARY KEY REFERENCES songs(id) ON DELETE CASCADE,
				vector     BLOB NOT NULL,
				dimension  INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE collections (
				id    INTEGER PRIMARY KEY AUTOINCREMENT,
				label TEXT NOT NULL
			);
			CREATE TABLE collection_songs (
				collection_id INTEGER NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
				song_id       INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
				PRIMARY KEY (collection_id, song_id)
			);
		`,
		DownSQL: `
			DROP TABLE collection_songs;
			DROP TABLE collections;
			DROP TABLE analyses;
		`,
	},
}
