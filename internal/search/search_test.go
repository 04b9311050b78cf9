package search

import (
	"context"
	"path/filepath"
	"testing"

	"cadence/internal/models"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.bleve"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAndSearchSong(t *testing.T) {
	idx := openTestIndex(t)

	song := models.Song{ID: 1, Title: "Midnight City"}
	if err := idx.IndexSong(song, []string{"M83"}, nil, "Hurry Up, We're Dreaming", nil); err != nil {
		t.Fatalf("IndexSong: %v", err)
	}

	results, err := idx.Search(context.Background(), "Midnight", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.SongIDs) != 1 || results.SongIDs[0] != 1 {
		t.Fatalf("expected song 1 in results, got %v", results.SongIDs)
	}
	if len(results.AlbumIDs) != 0 || len(results.ArtistIDs) != 0 {
		t.Fatalf("expected no album/artist matches, got %+v", results)
	}
}

func TestSearchMatchesByArtist(t *testing.T) {
	idx := openTestIndex(t)
	song := models.Song{ID: 2, Title: "Starboy"}
	if err := idx.IndexSong(song, []string{"The Weeknd"}, nil, "Starboy", nil); err != nil {
		t.Fatalf("IndexSong: %v", err)
	}

	results, err := idx.Search(context.Background(), "Weeknd", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.SongIDs) != 1 || results.SongIDs[0] != 2 {
		t.Fatalf("expected song 2 matched by artist name, got %v", results.SongIDs)
	}
}

func TestRemoveSongDropsFromResults(t *testing.T) {
	idx := openTestIndex(t)
	song := models.Song{ID: 3, Title: "Redbone"}
	if err := idx.IndexSong(song, []string{"Childish Gambino"}, nil, "Awaken, My Love!", nil); err != nil {
		t.Fatalf("IndexSong: %v", err)
	}
	if err := idx.RemoveSong(3); err != nil {
		t.Fatalf("RemoveSong: %v", err)
	}

	results, err := idx.Search(context.Background(), "Redbone", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.SongIDs) != 0 {
		t.Fatalf("expected removed song to be absent, got %v", results.SongIDs)
	}
}

func TestIndexAlbumAndArtist(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.IndexArtist(models.Artist{ID: 10, Name: "Tycho"}); err != nil {
		t.Fatalf("IndexArtist: %v", err)
	}
	if err := idx.IndexAlbum(models.Album{ID: 20, Title: "Dive"}, "Tycho"); err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}

	results, err := idx.Search(context.Background(), "Tycho", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.ArtistIDs) != 1 || results.ArtistIDs[0] != 10 {
		t.Fatalf("expected artist 10, got %v", results.ArtistIDs)
	}
	if len(results.AlbumIDs) != 1 || results.AlbumIDs[0] != 20 {
		t.Fatalf("expected album 20, got %v", results.AlbumIDs)
	}
}

func TestParseDocIDRoundTrip(t *testing.T) {
	cases := map[string]struct {
		docType string
		id      int64
	}{
		"song_42":   {"song", 42},
		"album_7":   {"album", 7},
		"artist_99": {"artist", 99},
	}
	for raw, want := range cases {
		docType, id, ok := parseDocID(raw)
		if !ok || docType != want.docType || id != want.id {
			t.Fatalf("parseDocID(%q) = (%q, %d, %v), want (%q, %d, true)", raw, docType, id, ok, want.docType, want.id)
		}
	}
	if _, _, ok := parseDocID("malformed"); ok {
		t.Fatal("expected malformed id to fail to parse")
	}
}

func TestEuclideanDist(t *testing.T) {
	d := euclideanDist([]float64{0, 0}, []float64{3, 4})
	if d != 5 {
		t.Fatalf("expected distance 5, got %v", d)
	}
}
