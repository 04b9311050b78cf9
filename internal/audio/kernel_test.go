package audio

import (
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"cadence/internal/queue"
)

// fakeSink records what the kernel asked it to do instead of touching a
// real output device.
type fakeSink struct {
	played []beep.Streamer
	cleared int
}

func (f *fakeSink) Init(beep.SampleRate, int) error { return nil }
func (f *fakeSink) Play(s beep.Streamer)             { f.played = append(f.played, s) }
func (f *fakeSink) Clear()                           { f.cleared++ }
func (f *fakeSink) Lock()                            {}
func (f *fakeSink) Unlock()                          {}
func (f *fakeSink) Close() error                     { return nil }

// fakeDecoder streams silence for a fixed number of samples at 44100Hz.
type fakeDecoder struct {
	total int
	pos   int
	err   error
}

func (d *fakeDecoder) Stream(samples [][2]float64) (n int, ok bool) {
	if d.pos >= d.total {
		return 0, false
	}
	n = len(samples)
	if d.pos+n > d.total {
		n = d.total - d.pos
	}
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{0, 0}
	}
	d.pos += n
	return n, n > 0
}
func (d *fakeDecoder) Err() error         { return d.err }
func (d *fakeDecoder) Len() int           { return d.total }
func (d *fakeDecoder) Position() int      { return d.pos }
func (d *fakeDecoder) Seek(p int) error   { d.pos = p; return nil }
func (d *fakeDecoder) Close() error       { return nil }
func (d *fakeDecoder) Format() beep.Format {
	return beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
}

func newTestKernel() (*Kernel, *fakeSink) {
	sink := &fakeSink{}
	open := func(path string) (Decoder, error) {
		return &fakeDecoder{total: 44100 * 3}, nil
	}
	k := NewKernel(sink, open, zerolog.Nop(), 8)
	return k, sink
}

func stateOf(t *testing.T, k *Kernel) State {
	t.Helper()
	reply := make(chan State, 1)
	k.dispatch(StateRequest{Reply: reply})
	select {
	case s := <-reply:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state snapshot")
		return State{}
	}
}

func TestAddToQueueStartsPlaybackWhenStopped(t *testing.T) {
	k, sink := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 1, Title: "a", Path: "a.mp3"}}})

	st := stateOf(t, k)
	if st.Playback != Playing {
		t.Fatalf("expected Playing, got %v", st.Playback)
	}
	if len(sink.played) != 1 {
		t.Fatalf("expected sink.Play to be called once, got %d", len(sink.played))
	}
}

func TestAddToQueueDoesNotRestartWhilePlaying(t *testing.T) {
	k, sink := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 1, Path: "a.mp3"}}})
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 2, Path: "b.mp3"}}})

	if len(sink.played) != 1 {
		t.Fatalf("expected only the first AddToQueue to start playback, sink.Play called %d times", len(sink.played))
	}
	st := stateOf(t, k)
	if st.Queue.Len() != 2 {
		t.Fatalf("expected queue length 2, got %d", st.Queue.Len())
	}
}

func TestPauseResume(t *testing.T) {
	k, _ := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 1, Path: "a.mp3"}}})

	k.dispatch(Pause{})
	if st := stateOf(t, k); st.Playback != Paused {
		t.Fatalf("expected Paused, got %v", st.Playback)
	}

	k.dispatch(Resume{})
	if st := stateOf(t, k); st.Playback != Playing {
		t.Fatalf("expected Playing, got %v", st.Playback)
	}
}

func TestStopClearsPlayback(t *testing.T) {
	k, sink := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 1, Path: "a.mp3"}}})
	k.dispatch(Stop{})

	st := stateOf(t, k)
	if st.Playback != Stopped {
		t.Fatalf("expected Stopped, got %v", st.Playback)
	}
	if sink.cleared != 1 {
		t.Fatalf("expected sink.Clear to be called once, got %d", sink.cleared)
	}
}

func TestSetVolumeClampsRange(t *testing.T) {
	k, _ := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{{ID: 1, Path: "a.mp3"}}})

	k.dispatch(SetVolume{Volume: 5})
	if st := stateOf(t, k); st.Volume != 1 {
		t.Fatalf("expected volume clamped to 1, got %v", st.Volume)
	}

	k.dispatch(SetVolume{Volume: -5})
	if st := stateOf(t, k); st.Volume != 0 {
		t.Fatalf("expected volume clamped to 0, got %v", st.Volume)
	}
}

func TestNextAdvancesQueue(t *testing.T) {
	k, _ := newTestKernel()
	k.dispatch(AddToQueue{Songs: []queue.Song{
		{ID: 1, Path: "a.mp3"},
		{ID: 2, Path: "b.mp3"},
	}})

	k.dispatch(Next{})
	st := stateOf(t, k)
	idx, ok := st.Queue.CurrentIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected current index 1, got %d (ok=%v)", idx, ok)
	}
}

func TestDecoderOpenFailureSkipsToNext(t *testing.T) {
	sink := &fakeSink{}
	calls := 0
	open := func(path string) (Decoder, error) {
		calls++
		if path == "bad.mp3" {
			return nil, errDecodeFailure{}
		}
		return &fakeDecoder{total: 44100}, nil
	}
	k := NewKernel(sink, open, zerolog.Nop(), 8)
	k.dispatch(AddToQueue{Songs: []queue.Song{
		{ID: 1, Path: "bad.mp3"},
		{ID: 2, Path: "good.mp3"},
	}})

	st := stateOf(t, k)
	idx, ok := st.Queue.CurrentIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected to have skipped to index 1, got %d (ok=%v)", idx, ok)
	}
	if st.Playback != Playing {
		t.Fatalf("expected Playing after skipping bad track, got %v", st.Playback)
	}
}

type errDecodeFailure struct{}

func (errDecodeFailure) Error() string { return "decode failure" }
