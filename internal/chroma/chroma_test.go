package chroma

import (
	"math"
	"testing"
)

func sineWave(freq float64, seconds float64) []float32 {
	n := int(SampleRate * seconds)
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / SampleRate
		out[i] = float32(math.Sin(2 * math.Pi * freq * t))
	}
	return out
}

func TestExtractReturnsThirteenBoundedFeatures(t *testing.T) {
	signal := sineWave(440.0, 2.0)
	features := Extract(signal)

	if len(features) != 13 {
		t.Fatalf("expected 13 features, got %d", len(features))
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("feature %d is not finite: %v", i, f)
		}
		if f < -1.0001 || f > 1.0001 {
			t.Fatalf("feature %d out of [-1,1]: %v", i, f)
		}
	}
}

func TestExtractSilenceIsFinite(t *testing.T) {
	signal := make([]float32, SampleRate*2)
	features := Extract(signal)
	if len(features) != 13 {
		t.Fatalf("expected 13 features, got %d", len(features))
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("silent-signal feature %d is not finite: %v", i, f)
		}
	}
}

func TestExtractShortSignalDoesNotPanic(t *testing.T) {
	signal := sineWave(220.0, 0.05)
	features := Extract(signal)
	if len(features) != 13 {
		t.Fatalf("expected 13 features, got %d", len(features))
	}
}

func TestChromaSTFTColumnsSumToOne(t *testing.T) {
	signal := sineWave(330.0, 1.0)
	spectrum := stft(signal, WindowSize, HopSize)
	tuning := estimateTuning(spectrum, WindowSize, 0.01, NChroma)
	chromaFrames := chromaSTFT(spectrum, WindowSize, NChroma, tuning)

	nFrames := len(chromaFrames[0])
	for f := 0; f < nFrames; f++ {
		var sum float64
		for c := 0; c < NChroma; c++ {
			sum += chromaFrames[c][f]
		}
		if sum < 0.99 || sum > 1.01 {
			// Frames below the 1e-4 energy threshold are left unnormalized.
			var total float64
			for c := 0; c < NChroma; c++ {
				total += chromaFrames[c][f]
			}
			if total >= 1e-4 {
				t.Fatalf("frame %d: chroma column sums to %v, want ~1", f, sum)
			}
		}
	}
}

func TestPitchTuningEmptyInputIsZero(t *testing.T) {
	if got := pitchTuning(nil, 0.01, 12); got != 0 {
		t.Fatalf("pitchTuning(nil) = %v, want 0", got)
	}
}

func TestHzToOctsMonotonic(t *testing.T) {
	low := hzToOcts(220, 0, 12)
	high := hzToOcts(440, 0, 12)
	if !(low < high) {
		t.Fatalf("expected hzToOcts to increase with frequency: low=%v high=%v", low, high)
	}
}
