package library

import (
	"fmt"

	"github.com/gopxl/beep/v2"

	"cadence/internal/audio"
	"cadence/internal/chroma"
)

// decodeMonoPCM opens path, resamples it to chroma's fixed sample rate, and
// downmixes to mono float32, the shape chroma.Extract expects. Mirrors the
// resample step in the audio kernel's playback chain, aimed at an analysis
// buffer instead of a live output device.
func decodeMonoPCM(path string) ([]float32, error) {
	dec, err := audio.OpenDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("library: open %s: %w", path, err)
	}
	defer dec.Close()

	resampled := beep.Resample(4, dec.Format().SampleRate, beep.SampleRate(chroma.SampleRate), dec)

	const chunk = 4096
	buf := make([][2]float64, chunk)
	var mono []float32
	for {
		n, ok := resampled.Stream(buf)
		for i := 0; i < n; i++ {
			mono = append(mono, float32((buf[i][0]+buf[i][1])/2))
		}
		if !ok {
			break
		}
	}
	return mono, nil
}
