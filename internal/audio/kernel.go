package audio

import (
	"math"
	"math/rand"
	"runtime"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/rs/zerolog"

	"cadence/internal/queue"
)

const (
	outputSampleRate = beep.SampleRate(44100)
	outputBufferSize = 2048
)

// OpenFunc opens the decoder for a queued song's file path. It is a field
// on Kernel, rather than a hard call to OpenDecoder, purely so tests can
// substitute a fake decoder and never touch the filesystem or a real
// container parser.
type OpenFunc func(path string) (Decoder, error)

// Kernel is the sole owner of the playback queue and the output device.
// Every field below is only ever touched from the goroutine running Run;
// all external interaction happens by sending a Command on Commands.
type Kernel struct {
	Commands chan Command

	sink   Sink
	open   OpenFunc
	log    zerolog.Logger
	q      queue.Queue
	volume float64

	playback PlaybackState
	current  Decoder
	ctrl     *beep.Ctrl
	gain     *effects.Volume
	position float64
	duration float64

	trackDone chan struct{}
}

// NewKernel constructs a kernel with the given output sink and decoder
// opener. commandBuffer sizes the inbound channel so bursty callers (a
// queue_add_many followed immediately by a state probe) don't block.
func NewKernel(sink Sink, open OpenFunc, log zerolog.Logger, commandBuffer int) *Kernel {
	return &Kernel{
		Commands:  make(chan Command, commandBuffer),
		sink:      sink,
		open:      open,
		log:       log.With().Str("component", "audio_kernel").Logger(),
		q:         *queue.New(),
		volume:    1.0,
		trackDone: make(chan struct{}, 1),
	}
}

// Run is the kernel's entire life cycle: it locks the calling goroutine to
// its OS thread (the output device and decoders are not safe to migrate
// between threads mid-stream) and blocks on Commands until told to shut
// down.
func (k *Kernel) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := k.sink.Init(outputSampleRate, outputBufferSize/10); err != nil {
		k.log.Error().Err(err).Msg("failed to initialize output device")
	}
	defer k.sink.Close()

	for cmd := range k.Commands {
		k.dispatch(cmd)
		if _, ok := cmd.(Shutdown); ok {
			return
		}
	}
}

func (k *Kernel) dispatch(cmd Command) {
	switch c := cmd.(type) {
	case AddToQueue:
		wasEmpty := k.q.Len() == 0
		k.q.AddMany(c.Songs)
		if wasEmpty && k.playback == Stopped {
			k.q.SetCurrentIndex(0)
			k.playCurrent()
		}
	case RemoveFromQueue:
		k.q.RemoveRange(c.Start, c.End)
	case PlayAtIndex:
		k.q.SetCurrentIndex(c.Index)
		k.playCurrent()
	case Pause:
		k.pause()
	case Resume:
		k.resume()
	case Stop:
		k.stop()
	case Next:
		if _, ok := k.q.NextSong(); ok {
			k.playCurrent()
		} else {
			k.stop()
		}
	case Previous:
		if _, ok := k.q.PreviousSong(); ok {
			k.playCurrent()
		} else {
			k.stop()
		}
	case Shuffle:
		k.q.Shuffle(rand.New(rand.NewSource(c.Seed)))
	case SetRepeatMode:
		k.q.SetRepeatMode(c.Mode)
	case Seek:
		k.seek(c.PositionSec)
	case SetVolume:
		k.setVolume(c.Volume)
	case StateRequest:
		c.Reply <- k.snapshot()
	case Shutdown:
		k.stop()
		if c.Done != nil {
			close(c.Done)
		}
	}
}

// playCurrent starts playback of whatever song the queue cursor currently
// points at. The cursor itself is set by the caller (SetCurrentIndex,
// NextSong, PreviousSong) before calling this.
func (k *Kernel) playCurrent() {
	song, ok := k.q.Current()
	if !ok {
		k.stop()
		return
	}

	k.closeCurrent()

	dec, err := k.open(song.Path)
	if err != nil {
		k.log.Error().Err(err).Str("path", song.Path).Msg("failed to open decoder")
		if _, advanced := k.q.NextSong(); advanced {
			k.playCurrent()
		} else {
			k.stop()
		}
		return
	}

	k.current = dec
	k.duration = float64(dec.Len()) / float64(dec.Format().SampleRate)
	k.position = 0

	resampled := beep.Resample(4, dec.Format().SampleRate, outputSampleRate, dec)
	k.gain = &effects.Volume{Streamer: resampled, Base: 2, Volume: linearToBeepVolume(k.volume)}
	k.ctrl = &beep.Ctrl{Streamer: k.gain, Paused: false}

	k.playback = Playing
	k.sink.Play(beep.Seq(k.ctrl, beep.Callback(func() {
		// Runs on the output device's own mixer goroutine, not the kernel
		// goroutine -- advance the queue by posting a command rather than
		// touching kernel state directly.
		select {
		case k.trackDone <- struct{}{}:
		default:
		}
		select {
		case k.Commands <- Next{}:
		default:
		}
	})))
}

func (k *Kernel) pause() {
	if k.ctrl == nil {
		return
	}
	k.sink.Lock()
	k.ctrl.Paused = true
	k.sink.Unlock()
	k.playback = Paused
}

func (k *Kernel) resume() {
	if k.ctrl == nil {
		return
	}
	k.sink.Lock()
	k.ctrl.Paused = false
	k.sink.Unlock()
	k.playback = Playing
}

func (k *Kernel) stop() {
	k.sink.Clear()
	k.closeCurrent()
	k.playback = Stopped
	k.position = 0
}

func (k *Kernel) closeCurrent() {
	if k.current != nil {
		k.current.Close()
		k.current = nil
	}
	k.ctrl = nil
	k.gain = nil
}

func (k *Kernel) seek(positionSec float64) {
	if k.current == nil {
		return
	}
	target := int(positionSec * float64(k.current.Format().SampleRate))
	k.sink.Lock()
	if err := k.current.Seek(target); err != nil {
		k.log.Error().Err(err).Msg("seek failed")
	} else {
		k.position = positionSec
	}
	k.sink.Unlock()
}

func (k *Kernel) setVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	k.volume = v
	if k.gain == nil {
		return
	}
	k.sink.Lock()
	k.gain.Volume = linearToBeepVolume(v)
	k.sink.Unlock()
}

func (k *Kernel) snapshot() State {
	if k.current != nil {
		k.sink.Lock()
		pos := float64(k.current.Position()) / float64(k.current.Format().SampleRate)
		k.sink.Unlock()
		k.position = pos
	}
	return State{
		Playback:    k.playback,
		Queue:       k.q,
		PositionSec: k.position,
		DurationSec: k.duration,
		Volume:      k.volume,
	}
}

// linearToBeepVolume converts a linear [0,1] volume into beep's
// logarithmic Volume field (0 = unity gain, negative attenuates).
func linearToBeepVolume(linear float64) float64 {
	if linear <= 0 {
		return -10
	}
	return math.Log2(linear)
}

// WaitForTrackDone blocks until the kernel's current track finishes
// playing, returning false if stop fires first. Intended for callers (the
// MPRIS bridge, a state-change log line) that want to react to track
// changes without polling state_audio(); the kernel advances the queue on
// its own via the same completion callback.
func (k *Kernel) WaitForTrackDone(stop <-chan struct{}) bool {
	select {
	case <-k.trackDone:
		return true
	case <-stop:
		return false
	}
}
