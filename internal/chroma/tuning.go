package chroma

import (
	"math"
	"sort"
)

// hzToOcts converts a frequency in Hz to octave-space, referenced against
// A440 shifted down four octaves to A0 (440/16 Hz), the same convention
// librosa uses for chroma construction.
func hzToOcts(freq, tuning float64, binsPerOctave int) float64 {
	a440 := 440.0 * math.Pow(2, tuning/float64(binsPerOctave))
	if freq <= 0 {
		return math.Inf(-1)
	}
	return math.Log2(freq / (a440 / 16))
}

// pipTrack finds local-maximum spectral peaks in the band [150, min(4000,
// sr/2)) Hz via parabolic interpolation, returning their interpolated
// frequencies and magnitudes.
func pipTrack(spectrum [][]float64, nFFT int) (pitches, mags []float64) {
	fmin, fmax := 150.0, math.Min(4000.0, SampleRate/2.0)
	nBins := nFFT/2 + 1
	freqStep := (SampleRate / 2.0) / float64(nBins-1)

	beginning, end := -1, -1
	for i := 0; i < nBins; i++ {
		f := float64(i) * freqStep
		if f >= fmin && f < fmax {
			if beginning == -1 {
				beginning = i
			}
			end = i + 1
		}
	}
	if beginning == -1 || end-beginning < 3 {
		return nil, nil
	}

	nFrames := 0
	if len(spectrum) > 0 {
		nFrames = len(spectrum[0])
	}
	threshold := 0.1

	for frame := 0; frame < nFrames; frame++ {
		maxVal := spectrum[0][frame]
		for b := 1; b < len(spectrum); b++ {
			if spectrum[b][frame] > maxVal {
				maxVal = spectrum[b][frame]
			}
		}
		ref := threshold * maxVal

		for b := beginning + 1; b < end-2; b++ {
			before := spectrum[b-1][frame]
			elem := spectrum[b][frame]
			after := spectrum[b+1][frame]
			if elem > ref && after <= elem && before < elem {
				avg := 0.5 * (after - before)
				shift := 2*elem - after - before
				if math.Abs(shift) < minPositiveFloat64 {
					shift += 1
				}
				shift = avg / shift
				freq := (float64(b) + shift) * SampleRate / float64(nFFT)
				mag := elem + 0.5*avg*shift
				pitches = append(pitches, freq)
				mags = append(mags, mag)
			}
		}
	}
	return pitches, mags
}

const minPositiveFloat64 = 2.2250738585072014e-308

// pitchTuning histograms octave-space residues of the given frequencies
// into bins of width resolution over [-0.5, 0.5) and returns the center of
// the modal bin. An empty input returns 0.
func pitchTuning(frequencies []float64, resolution float64, binsPerOctave int) float64 {
	if len(frequencies) == 0 {
		return 0
	}
	residues := make([]float64, len(frequencies))
	for i, f := range frequencies {
		oct := hzToOcts(f, 0, 12)
		r := math.Mod(float64(binsPerOctave)*oct, 1.0)
		if r >= 0.5 {
			r -= 1.0
		}
		// Mod in Go can return negative values for negative inputs; normalize
		// into [-0.5, 0.5) as the modulo-then-shift above assumes.
		for r < -0.5 {
			r += 1.0
		}
		for r >= 0.5 {
			r -= 1.0
		}
		residues[i] = r
	}

	nBins := int((0.5 - (-0.5)) / resolution)
	if nBins <= 0 {
		nBins = 1
	}
	counts := make([]int, nBins)
	for _, r := range residues {
		idx := int((r - (-0.5)) / resolution)
		if idx < 0 {
			idx = 0
		}
		if idx >= nBins {
			idx = nBins - 1
		}
		counts[idx]++
	}

	maxIdx := 0
	for i, c := range counts {
		if c > counts[maxIdx] {
			maxIdx = i
		}
	}
	return -0.5 + (float64(maxIdx)+0.5)*resolution
}

// estimateTuning estimates the fractional-semitone tuning offset of a
// signal from its magnitude spectrogram: pick spectral peaks, keep those
// at or above the median magnitude, and histogram their octave residues.
func estimateTuning(spectrum [][]float64, nFFT int, resolution float64, binsPerOctave int) float64 {
	pitches, mags := pipTrack(spectrum, nFFT)
	if len(pitches) == 0 {
		return 0
	}

	var filteredPitch, filteredMag []float64
	for i, p := range pitches {
		if p > 0 {
			filteredPitch = append(filteredPitch, p)
			filteredMag = append(filteredMag, mags[i])
		}
	}
	if len(filteredPitch) == 0 {
		return 0
	}

	threshold := median(filteredMag)
	var kept []float64
	for i, m := range filteredMag {
		if m >= threshold {
			kept = append(kept, filteredPitch[i])
		}
	}
	return pitchTuning(kept, resolution, binsPerOctave)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}
