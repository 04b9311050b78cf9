package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
)

// Decoder is the narrow interface a container-specific decoder must
// satisfy: a seekable, closeable PCM stream plus the format beep needs to
// resample/mix it.
type Decoder interface {
	beep.StreamSeekCloser
	Format() beep.Format
}

type decoderFunc func(f *os.File) (Decoder, error)

// decodersByExt dispatches on file extension to the per-container decoder,
// each backed by its own dedicated parsing library -- this package only
// wires the dispatch, it does not reimplement any container's internals.
var decodersByExt = map[string]decoderFunc{
	".mp3": func(f *os.File) (Decoder, error) {
		stream, format, err := mp3.Decode(f)
		if err != nil {
			return nil, err
		}
		return formatDecoder{stream, format}, nil
	},
	".flac": func(f *os.File) (Decoder, error) {
		stream, format, err := flac.Decode(f)
		if err != nil {
			return nil, err
		}
		return formatDecoder{stream, format}, nil
	},
	".ogg": func(f *os.File) (Decoder, error) {
		stream, format, err := vorbis.Decode(f)
		if err != nil {
			return nil, err
		}
		return formatDecoder{stream, format}, nil
	},
}

type formatDecoder struct {
	beep.StreamSeekCloser
	format beep.Format
}

func (d formatDecoder) Format() beep.Format { return d.format }

// OpenDecoder opens path and selects its decoder by file extension.
func OpenDecoder(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decodersByExt[ext]
	if !ok {
		return nil, fmt.Errorf("audio: no decoder registered for extension %q", ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	dec, err := decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return dec, nil
}
