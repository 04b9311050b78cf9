package queue

import (
	"math/rand"
	"testing"
)

func songs(n int) []Song {
	out := make([]Song, n)
	for i := range out {
		out[i] = Song{ID: int64(i), Title: string(rune('a' + i))}
	}
	return out
}

func TestBasics(t *testing.T) {
	q := New()
	s := songs(3)
	q.AddMany(s)

	got, ok := q.NextSong()
	if !ok || got.ID != s[0].ID {
		t.Fatalf("next_song 1: got %+v ok=%v", got, ok)
	}
	got, ok = q.NextSong()
	if !ok || got.ID != s[1].ID {
		t.Fatalf("next_song 2: got %+v ok=%v", got, ok)
	}
	got, ok = q.PreviousSong()
	if !ok || got.ID != s[0].ID {
		t.Fatalf("previous_song 1: got %+v ok=%v", got, ok)
	}
	if _, ok = q.PreviousSong(); ok {
		t.Fatalf("previous_song 2: expected absent cursor")
	}
}

func TestWrapRepeatAll(t *testing.T) {
	q := New()
	s := songs(2)
	q.AddMany(s)
	q.SetRepeatMode(RepeatAll)

	if got, ok := q.NextSong(); !ok || got.ID != s[0].ID {
		t.Fatalf("expected s1, got %+v ok=%v", got, ok)
	}
	got, ok := q.SkipForward(3)
	if !ok || got.ID != s[1].ID {
		t.Fatalf("skip_forward(3): expected s2, got %+v ok=%v", got, ok)
	}
}

func TestWrapRepeatNone(t *testing.T) {
	q := New()
	s := songs(1)
	q.AddMany(s)

	if got, ok := q.NextSong(); !ok || got.ID != s[0].ID {
		t.Fatalf("expected s1, got %+v ok=%v", got, ok)
	}
	if _, ok := q.SkipForward(1); ok {
		t.Fatalf("expected queue cleared")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len=%d", q.Len())
	}
}

func TestSkipBackwardNeverWraps(t *testing.T) {
	q := New()
	q.AddMany(songs(3))
	q.SetRepeatMode(RepeatAll)
	q.SetCurrentIndex(0)

	if _, ok := q.SkipBackward(1); ok {
		t.Fatalf("skip_backward should not wrap under RepeatAll")
	}
	if _, ok := q.CurrentIndex(); ok {
		t.Fatalf("expected cursor absent after non-wrapping skip_backward")
	}
}

func TestRemoveAtCursorSlidesLeft(t *testing.T) {
	q := New()
	s := songs(3)
	q.AddMany(s)
	q.SetCurrentIndex(1)

	q.Remove(1)
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	idx, ok := q.CurrentIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected cursor to stay at numeric index 1, got %d ok=%v", idx, ok)
	}
	cur, _ := q.Current()
	if cur.ID != s[2].ID {
		t.Fatalf("expected cursor to now point at s3, got %+v", cur)
	}
}

func TestRemoveLastSongClearsCursor(t *testing.T) {
	q := New()
	q.AddMany(songs(1))
	q.SetCurrentIndex(0)
	q.Remove(0)
	if _, ok := q.CurrentIndex(); ok {
		t.Fatalf("expected cursor absent after removing the only song")
	}
}

func TestRemoveLastSongAtCursorClampsToNewLast(t *testing.T) {
	q := New()
	s := songs(3)
	q.AddMany(s)
	q.SetCurrentIndex(2)

	q.Remove(2)
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	idx, ok := q.CurrentIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected cursor clamped to the new last index 1, got %d ok=%v", idx, ok)
	}
	cur, _ := q.Current()
	if cur.ID != s[1].ID {
		t.Fatalf("expected cursor to point at s2, got %+v", cur)
	}
}

func TestRemoveRangeCursorInRange(t *testing.T) {
	q := New()
	q.AddMany(songs(5))
	q.SetCurrentIndex(2)
	q.RemoveRange(1, 4)

	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	idx, ok := q.CurrentIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected cursor clamped to s=1, got %d ok=%v", idx, ok)
	}
}

func TestRemoveRangePreservesOrder(t *testing.T) {
	q := New()
	s := songs(5)
	q.AddMany(s)
	q.RemoveRange(1, 3)

	want := []int64{s[0].ID, s[3].ID, s[4].ID}
	got := q.Songs()
	if len(got) != len(want) {
		t.Fatalf("expected %d songs, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("index %d: expected id %d, got %d", i, id, got[i].ID)
		}
	}
}

func TestShuffleMovesCurrentToFront(t *testing.T) {
	q := New()
	q.AddMany(songs(6))
	q.SetCurrentIndex(4)
	q.Shuffle(rand.New(rand.NewSource(1)))

	idx, ok := q.CurrentIndex()
	if !ok || idx != 0 {
		t.Fatalf("expected cursor at 0 after shuffle, got %d ok=%v", idx, ok)
	}
	cur, _ := q.Current()
	if cur.ID != 4 {
		t.Fatalf("expected the previously-current song at index 0, got id %d", cur.ID)
	}
}

func TestSetCurrentIndexClamps(t *testing.T) {
	q := New()
	q.AddMany(songs(3))
	q.SetCurrentIndex(100)
	idx, ok := q.CurrentIndex()
	if !ok || idx != 2 {
		t.Fatalf("expected clamp to len-1=2, got %d ok=%v", idx, ok)
	}

	q2 := New()
	q2.SetCurrentIndex(5)
	if _, ok := q2.CurrentIndex(); ok {
		t.Fatalf("expected absent cursor on empty queue")
	}
}

func TestEmptyQueueInvariant(t *testing.T) {
	q := New()
	q.AddMany(songs(2))
	q.RemoveRange(0, 2)
	if q.Len() != 0 {
		t.Fatalf("expected empty queue")
	}
	if _, ok := q.CurrentIndex(); ok {
		t.Fatalf("expected absent cursor when len==0")
	}
}
