package chroma

import "math"

// chromaFilter builds the n_chroma x (n_fft/2+1) filter bank: rows are
// tuning-shifted Gaussian bumps over the pitch axis, L2-normalized per
// column, weighted by a Gaussian octave window centered at 5 octaves with
// width 2, then cyclically rolled by 3 rows so bin 0 aligns with C.
func chromaFilter(nFFT, nChroma int, tuning float64) [][]float64 {
	const ctroct = 5.0
	const octwidth = 2.0
	nChromaF := float64(nChroma)
	nChroma2 := math.Round(nChromaF / 2.0)

	n := nFFT + 1
	freqBins := make([]float64, n)
	for i := range freqBins {
		hz := float64(i) * SampleRate / float64(nFFT)
		freqBins[i] = hzToOcts(hz, tuning, nChroma) * nChromaF
	}
	if n > 1 {
		freqBins[0] = freqBins[1] - 1.5*nChromaF
	}

	binwidth := make([]float64, n)
	for i := 0; i < n-1; i++ {
		d := freqBins[i+1] - freqBins[i]
		if d < 1 {
			d = 1
		}
		binwidth[i] = d
	}
	binwidth[n-1] = 1

	wts := make([][]float64, nChroma)
	for c := 0; c < nChroma; c++ {
		wts[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			d := -float64(c) + freqBins[i]
			d += nChroma2 + 10*nChromaF
			d = math.Mod(d, nChromaF) - nChroma2
			d /= binwidth[i]
			wts[c][i] = math.Exp(-2 * d * d)
		}
	}

	// L2-normalize each column.
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < nChroma; c++ {
			sum += wts[c][i] * wts[c][i]
		}
		norm := math.Sqrt(sum)
		if norm >= minPositiveFloat64 {
			for c := 0; c < nChroma; c++ {
				wts[c][i] /= norm
			}
		}
	}

	// Gaussian tuning curve over octaves, applied per column.
	octWeight := make([]float64, n)
	for i := 0; i < n; i++ {
		x := (freqBins[i]/nChromaF - ctroct) / octwidth
		octWeight[i] = math.Exp(-0.5 * x * x)
	}
	for c := 0; c < nChroma; c++ {
		for i := 0; i < n; i++ {
			wts[c][i] *= octWeight[i]
		}
	}

	// Cyclic roll by 3 rows.
	rolled := make([][]float64, nChroma)
	for c := 0; c < nChroma; c++ {
		src := ((c-3)%nChroma + nChroma) % nChroma
		rolled[c] = wts[src]
	}

	nonAliased := 1 + nFFT/2
	out := make([][]float64, nChroma)
	for c := 0; c < nChroma; c++ {
		out[c] = rolled[c][:nonAliased]
	}
	return out
}

// chromaSTFT projects a magnitude spectrogram through the chroma filter
// bank and L1-normalizes each resulting column (one per STFT frame).
func chromaSTFT(spectrum [][]float64, nFFT, nChroma int, tuning float64) [][]float64 {
	filter := chromaFilter(nFFT, nChroma, tuning)
	nBins := len(spectrum)
	nFrames := 0
	if nBins > 0 {
		nFrames = len(spectrum[0])
	}

	chroma := make([][]float64, nChroma)
	for c := 0; c < nChroma; c++ {
		chroma[c] = make([]float64, nFrames)
		for f := 0; f < nFrames; f++ {
			var sum float64
			for b := 0; b < nBins; b++ {
				mag := spectrum[b][f]
				sum += filter[c][b] * mag * mag
			}
			chroma[c][f] = sum
		}
	}

	for f := 0; f < nFrames; f++ {
		var total float64
		for c := 0; c < nChroma; c++ {
			total += chroma[c][f]
		}
		if total >= 1e-4 {
			for c := 0; c < nChroma; c++ {
				chroma[c][f] /= total
			}
		}
	}
	return chroma
}
