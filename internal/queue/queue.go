// Package queue implements the ordered, repeat-aware playback queue owned
// exclusively by the audio kernel. Every operation is total: out-of-range
// inputs are clamped or ignored rather than returning an error.
package queue

import "math/rand"

// RepeatMode controls what skip_forward and next_song do at the end of the
// queue.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

// Song is the minimal identity the queue cares about; callers attach
// whatever richer value they like.
type Song struct {
	ID    int64
	Title string
	Path  string
}

// Queue is an ordered sequence of songs plus an optional cursor. If the
// queue is empty the cursor is always absent; if present it always indexes
// a valid entry.
type Queue struct {
	songs   []Song
	current int // -1 means absent
	repeat  RepeatMode
}

// New returns an empty queue with repeat mode None.
func New() *Queue {
	return &Queue{current: -1}
}

// Len reports the number of songs in the queue.
func (q *Queue) Len() int { return len(q.songs) }

// CurrentIndex reports the cursor and whether it is present.
func (q *Queue) CurrentIndex() (int, bool) {
	if q.current < 0 {
		return 0, false
	}
	return q.current, true
}

// Current returns the song at the cursor, if any.
func (q *Queue) Current() (Song, bool) {
	if q.current < 0 {
		return Song{}, false
	}
	return q.songs[q.current], true
}

// Songs returns a copy of the queue contents in order.
func (q *Queue) Songs() []Song {
	out := make([]Song, len(q.songs))
	copy(out, q.songs)
	return out
}

// RepeatMode reports the current repeat mode.
func (q *Queue) RepeatMode() RepeatMode { return q.repeat }

// SetRepeatMode changes the repeat mode without touching the cursor.
func (q *Queue) SetRepeatMode(m RepeatMode) { q.repeat = m }

// Add appends a single song; the cursor is never affected.
func (q *Queue) Add(s Song) { q.songs = append(q.songs, s) }

// AddMany appends songs in order; the cursor is never affected.
func (q *Queue) AddMany(songs []Song) { q.songs = append(q.songs, songs...) }

// Remove drops the song at index i, no-op if i is out of range. Removing
// the song at the cursor leaves the cursor at the same numeric index, which
// now holds the next song -- unless that index was also the last one, in
// which case the cursor moves back to the new last index instead of going
// absent.
func (q *Queue) Remove(i int) {
	if i < 0 || i >= len(q.songs) {
		return
	}
	switch {
	case q.current < 0:
		// no cursor to adjust
	case i < q.current:
		q.current--
	case i == q.current && i == len(q.songs)-1:
		q.current--
	case i == q.current:
		// cursor stays at the same numeric index; it now points at the
		// song that slid left into this slot.
	}
	q.songs = append(q.songs[:i], q.songs[i+1:]...)
	if len(q.songs) == 0 {
		q.current = -1
	}
}

// RemoveRange drops songs in [s,e), clamping e to len and s to e.
func (q *Queue) RemoveRange(s, e int) {
	n := len(q.songs)
	if e > n {
		e = n
	}
	if s < 0 {
		s = 0
	}
	if s > e {
		s = e
	}
	if s == e {
		return
	}

	oldCursor := q.current
	removed := e - s
	q.songs = append(q.songs[:s], q.songs[e:]...)

	switch {
	case oldCursor < 0:
		// stays absent
	case oldCursor >= s && oldCursor < e:
		q.current = s
	case oldCursor >= e:
		q.current = oldCursor - removed
	default:
		// oldCursor < s: unaffected
		q.current = oldCursor
	}

	if len(q.songs) == 0 || q.current < 0 || q.current >= len(q.songs) {
		q.current = -1
	}
}

// NextSong advances the cursor per the repeat mode and returns the new
// current song, if any. Under RepeatOne with a set cursor it is the
// identity; otherwise it behaves like SkipForward(1).
func (q *Queue) NextSong() (Song, bool) {
	if q.repeat == RepeatOne && q.current >= 0 {
		return q.Current()
	}
	return q.SkipForward(1)
}

// PreviousSong moves the cursor back one position and returns the new
// current song, if any.
func (q *Queue) PreviousSong() (Song, bool) {
	return q.SkipBackward(1)
}

// SkipForward advances the cursor by n songs, applying repeat-mode
// semantics when it would run past the end of the queue.
func (q *Queue) SkipForward(n int) (Song, bool) {
	if n <= 0 {
		return q.Current()
	}
	if q.current < 0 {
		if len(q.songs) == 0 {
			return Song{}, false
		}
		q.current = 0
		return q.SkipForward(n - 1)
	}

	target := q.current + n
	if target < len(q.songs) {
		q.current = target
		return q.Current()
	}

	switch q.repeat {
	case RepeatAll:
		q.current = target % len(q.songs)
		return q.Current()
	default:
		q.songs = nil
		q.current = -1
		return Song{}, false
	}
}

// SkipBackward moves the cursor back by n songs. It never wraps, even
// under RepeatAll: if the cursor would go negative, it becomes absent.
func (q *Queue) SkipBackward(n int) (Song, bool) {
	if q.current < 0 {
		return Song{}, false
	}
	if q.current >= n {
		q.current -= n
		return q.Current()
	}
	q.current = -1
	return Song{}, false
}

// Shuffle moves the current song (if any) to index 0 and randomly
// permutes the rest using r. If r is nil, the global math/rand source is
// used.
func (q *Queue) Shuffle(r *rand.Rand) {
	if q.current > 0 {
		q.songs[0], q.songs[q.current] = q.songs[q.current], q.songs[0]
		q.current = 0
	}
	if len(q.songs) <= 2 {
		return
	}
	tail := q.songs[1:]
	shuffleFn := rand.Shuffle
	if r != nil {
		shuffleFn = r.Shuffle
	}
	shuffleFn(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
}

// SetCurrentIndex clamps i to [0, len-1] and sets the cursor, or clears it
// if the queue is empty.
func (q *Queue) SetCurrentIndex(i int) {
	if len(q.songs) == 0 {
		q.current = -1
		return
	}
	if i < 0 {
		i = 0
	}
	if i > len(q.songs)-1 {
		i = len(q.songs) - 1
	}
	q.current = i
}
