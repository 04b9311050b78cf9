package audio

import (
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Sink is the output device the kernel plays through. It exists as an
// interface, rather than calling the speaker package directly, so the
// kernel's command-dispatch logic can be exercised in tests without
// opening a real audio device.
type Sink interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
	Close() error
}

// speakerSink is the production Sink, backed by beep's default
// ebitengine/oto-based speaker.
type speakerSink struct {
	initialized bool
}

// NewSpeakerSink builds the real output device sink.
func NewSpeakerSink() Sink {
	return &speakerSink{}
}

func (s *speakerSink) Init(sampleRate beep.SampleRate, bufferSize int) error {
	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

func (s *speakerSink) Play(streamer beep.Streamer) { speaker.Play(streamer) }
func (s *speakerSink) Clear()                      { speaker.Clear() }
func (s *speakerSink) Lock()                        { speaker.Lock() }
func (s *speakerSink) Unlock()                      { speaker.Unlock() }
func (s *speakerSink) Close() error {
	if !s.initialized {
		return nil
	}
	speaker.Close()
	return nil
}
