// Package models holds the persisted record shapes shared between storage,
// library, search, and the RPC surface.
package models

import "time"

// Song is the brief form described by the data model: an identity plus the
// tag-derived attributes a scan produces. Its ID is stable across renames
// when the content hash of the backing file is unchanged.
type Song struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ArtistIDs    []int64   `json:"artist_ids"`
	AlbumID      int64     `json:"album_id"`
	AlbumArtists []int64   `json:"album_artist_ids"`
	Genres       []string  `json:"genres"`
	Duration     float64   `json:"duration_seconds"`
	TrackNumber  *int      `json:"track_number,omitempty"`
	DiscNumber   *int      `json:"disc_number,omitempty"`
	ReleaseYear  *int      `json:"release_year,omitempty"`
	FilePath     string    `json:"file_path"`
	Extension    string    `json:"extension"`
	ContentHash  string    `json:"content_hash"`
	FileSize     int64     `json:"file_size"`
	FileModified time.Time `json:"file_modified"`
	DateAdded    time.Time `json:"date_added"`
}

// Artist is derived from songs at scan time.
type Artist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortName  string `json:"sort_name,omitempty"`
	SongCount int    `json:"song_count"`
	RuntimeS  int64  `json:"total_runtime_seconds"`
}

// Album is derived from songs at scan time.
type Album struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ArtistID    int64  `json:"artist_id"`
	ReleaseYear *int   `json:"release_year,omitempty"`
	SongCount   int    `json:"song_count"`
	RuntimeS    int64  `json:"total_runtime_seconds"`
}

// SongBrief is the minimal projection carried by the queue and RPC
// responses that only need identity plus display text.
type SongBrief struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Path  string `json:"file_path"`
}
