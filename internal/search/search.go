// Package search maintains a bleve full-text index over songs, albums,
// and artists, with each song's analysis vector stored in a vector field;
// radio similarity (SimilarByVector) ranks stored analyses directly. Adapted from the teacher's search service: the
// document shape, field mappings, and rebuild-from-database flow are
// unchanged in spirit, only the underlying models and storage handle are
// cadence's own.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bleveSearch "github.com/blevesearch/bleve/v2/search"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/sync/errgroup"

	"cadence/internal/models"
	"cadence/internal/storage"
)

const vectorDims = 13

// Index wraps the bleve full-text + vector index backing search() and
// radio_get_similar_*().
type Index struct {
	index bleve.Index
	db    *storage.DB
}

// document is the flat shape every song/album/artist is indexed as; Type
// plus the numeric suffix of ID disambiguates the three.
type document struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	AlbumArtist string    `json:"album_artist"`
	Genres      string    `json:"genres"`
	Year        int       `json:"year"`
	Vector      []float32 `json:"vector,omitempty"`
}

// Open opens (or creates) the index at indexPath.
func Open(indexPath string, db *storage.DB) (*Index, error) {
	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = buildMapping(indexPath)
		if err != nil {
			return nil, fmt.Errorf("search: create index: %w", err)
		}
	}
	return &Index{index: idx, db: db}, nil
}

func buildMapping(indexPath string) (bleve.Index, error) {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"

	keyword := bleve.NewKeywordFieldMapping()
	numeric := bleve.NewNumericFieldMapping()

	vector := bleve.NewVectorFieldMapping()
	vector.Dims = vectorDims
	vector.Similarity = "l2_norm"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("artist", text)
	doc.AddFieldMappingsAt("album", text)
	doc.AddFieldMappingsAt("album_artist", text)
	doc.AddFieldMappingsAt("genres", text)
	doc.AddFieldMappingsAt("year", numeric)
	doc.AddFieldMappingsAt("vector", vector)

	mapping := bleve.NewIndexMapping()
	mapping.DefaultMapping = doc
	return bleve.New(indexPath, mapping)
}

func (idx *Index) Close() error { return idx.index.Close() }

func songDocID(id int64) string   { return fmt.Sprintf("song_%d", id) }
func albumDocID(id int64) string  { return fmt.Sprintf("album_%d", id) }
func artistDocID(id int64) string { return fmt.Sprintf("artist_%d", id) }

// IndexSong upserts a song document, including its analysis vector if
// present (radio similarity degrades gracefully to "no vector" when
// analysis is disabled or the song hasn't been analyzed yet).
func (idx *Index) IndexSong(song models.Song, artistNames, albumArtistNames []string, albumTitle string, vector []float64) error {
	doc := document{
		ID:          songDocID(song.ID),
		Type:        "song",
		Title:       song.Title,
		Artist:      strings.Join(artistNames, "; "),
		Album:       albumTitle,
		AlbumArtist: strings.Join(albumArtistNames, "; "),
		Genres:      strings.Join(song.Genres, ";"),
	}
	if song.ReleaseYear != nil {
		doc.Year = *song.ReleaseYear
	}
	if vector != nil {
		doc.Vector = toFloat32(vector)
	}
	return idx.index.Index(doc.ID, doc)
}

func (idx *Index) IndexAlbum(album models.Album, artistName string) error {
	doc := document{
		ID:     albumDocID(album.ID),
		Type:   "album",
		Title:  album.Title,
		Artist: artistName,
	}
	if album.ReleaseYear != nil {
		doc.Year = *album.ReleaseYear
	}
	return idx.index.Index(doc.ID, doc)
}

func (idx *Index) IndexArtist(artist models.Artist) error {
	doc := document{ID: artistDocID(artist.ID), Type: "artist", Title: artist.Name, Artist: artist.Name}
	return idx.index.Index(doc.ID, doc)
}

func (idx *Index) RemoveSong(id int64) error   { return idx.index.Delete(songDocID(id)) }
func (idx *Index) RemoveAlbum(id int64) error  { return idx.index.Delete(albumDocID(id)) }
func (idx *Index) RemoveArtist(id int64) error { return idx.index.Delete(artistDocID(id)) }

// Results holds the three result lists from a composed search() call.
type Results struct {
	SongIDs   []int64
	AlbumIDs  []int64
	ArtistIDs []int64
}

// Search runs three bounded full-text sub-searches (songs, albums,
// artists) in parallel and composes their id lists. Each sub-search is
// bounded by limit independently, per the RPC contract.
func (idx *Index) Search(ctx context.Context, q string, limit int) (Results, error) {
	var results Results
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		ids, err := idx.searchType(q, "song", limit)
		if err != nil {
			return err
		}
		results.SongIDs = ids
		return nil
	})
	g.Go(func() error {
		ids, err := idx.searchType(q, "album", limit)
		if err != nil {
			return err
		}
		results.AlbumIDs = ids
		return nil
	})
	g.Go(func() error {
		ids, err := idx.searchType(q, "artist", limit)
		if err != nil {
			return err
		}
		results.ArtistIDs = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

func (idx *Index) searchType(q, docType string, limit int) ([]int64, error) {
	textQuery := bleve.NewDisjunctionQuery(
		fieldMatch(q, "title", 2.0),
		fieldMatch(q, "artist", 1.5),
		fieldMatch(q, "album", 1.0),
		fieldMatch(q, "album_artist", 1.0),
	)
	typeQuery := bleve.NewTermQuery(docType)
	typeQuery.SetField("type")

	combined := bleve.NewConjunctionQuery(textQuery, typeQuery)

	req := bleve.NewSearchRequest(combined)
	req.Size = limit
	result, err := idx.index.Search(req)
	if err != nil {
		return nil, err
	}
	return idsFromHits(result.Hits), nil
}

func fieldMatch(q, field string, boost float64) bleveQuery.Query {
	m := bleve.NewMatchQuery(q)
	m.SetField(field)
	m.SetBoost(boost)
	return m
}

func idsFromHits(hits []*bleveSearch.DocumentMatch) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		_, id, ok := parseDocID(h.ID)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, v := range xs {
		out[i] = float32(v)
	}
	return out
}

// RebuildIndex re-indexes every artist, album and song in storage in one
// batch; documents already in the index are overwritten, and documents
// whose rows no longer exist are not removed. Rescan calls it at the end
// of every pass.
func (idx *Index) RebuildIndex(ctx context.Context) error {
	songs, err := idx.db.AllSongs(ctx)
	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}
	albums, err := idx.db.AllAlbums(ctx)
	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}
	artists, err := idx.db.AllArtists(ctx)
	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}
	analyses, err := idx.db.AllAnalyses(ctx)
	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}

	vectorBySong := make(map[int64][]float64, len(analyses))
	for _, a := range analyses {
		vectorBySong[a.SongID] = a.Vector
	}
	albumTitleByID := make(map[int64]string, len(albums))
	for _, a := range albums {
		albumTitleByID[a.ID] = a.Title
	}
	artistNameByID := make(map[int64]string, len(artists))
	for _, a := range artists {
		artistNameByID[a.ID] = a.Name
	}

	batch := idx.index.NewBatch()
	for _, artist := range artists {
		doc := document{ID: artistDocID(artist.ID), Type: "artist", Title: artist.Name, Artist: artist.Name}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("search: rebuild: index artist %d: %w", artist.ID, err)
		}
	}
	for _, album := range albums {
		doc := document{ID: albumDocID(album.ID), Type: "album", Title: album.Title, Artist: artistNameByID[album.ArtistID]}
		if album.ReleaseYear != nil {
			doc.Year = *album.ReleaseYear
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("search: rebuild: index album %d: %w", album.ID, err)
		}
	}
	for _, song := range songs {
		artistNames := namesFor(song.ArtistIDs, artistNameByID)
		albumArtistNames := namesFor(song.AlbumArtists, artistNameByID)
		doc := document{
			ID:          songDocID(song.ID),
			Type:        "song",
			Title:       song.Title,
			Artist:      strings.Join(artistNames, "; "),
			Album:       albumTitleByID[song.AlbumID],
			AlbumArtist: strings.Join(albumArtistNames, "; "),
			Genres:      strings.Join(song.Genres, ";"),
		}
		if song.ReleaseYear != nil {
			doc.Year = *song.ReleaseYear
		}
		if vec, ok := vectorBySong[song.ID]; ok {
			doc.Vector = toFloat32(vec)
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("search: rebuild: index song %d: %w", song.ID, err)
		}
	}

	if err := idx.index.Batch(batch); err != nil {
		return fmt.Errorf("search: rebuild: commit batch: %w", err)
	}
	return nil
}

func namesFor(ids []int64, byID map[int64]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			out = append(out, name)
		}
	}
	return out
}

// SimilarByVector returns up to limit song IDs whose analysis vectors are
// nearest to target in Euclidean distance, for radio_get_similar_*.
// exclude is typically the seed song set itself so a song never
// recommends itself. The vector field mapped into the bleve index exists
// for future KNN-query support; ranking here is computed directly over
// storage-backed analyses so the result is exact rather than approximate.
func (idx *Index) SimilarByVector(ctx context.Context, target []float64, limit int, exclude map[int64]bool) ([]int64, error) {
	analyses, err := idx.db.AllAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: similar: %w", err)
	}

	type scored struct {
		id   int64
		dist float64
	}
	candidates := make([]scored, 0, len(analyses))
	for _, a := range analyses {
		if exclude[a.SongID] || len(a.Vector) != len(target) {
			continue
		}
		candidates = append(candidates, scored{id: a.SongID, dist: euclideanDist(a.Vector, target)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

func euclideanDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func parseDocID(id string) (docType string, songID int64, ok bool) {
	parts := strings.SplitN(id, "_", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[0], n, true
}
