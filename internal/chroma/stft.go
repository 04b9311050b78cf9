// Package chroma extracts a 13-element interval-class feature vector from
// mono float32 PCM, following the short-time Fourier transform -> chroma
// filter bank -> interval-template pipeline described for the analyze job.
// Every computation, including the returned vector, is float64.
package chroma

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SampleRate is the fixed input sample rate the whole pipeline assumes.
	SampleRate = 22050
	// WindowSize is the STFT analysis window, in samples.
	WindowSize = 8192
	// HopSize is the STFT hop between consecutive frames, in samples.
	HopSize = 2205
	// NChroma is the number of pitch classes in the chroma filter bank.
	NChroma = 12
)

// stft computes the magnitude spectrogram of signal using a Hann-windowed
// short-time Fourier transform. The result is (n_fft/2+1) rows by
// n_frames columns, matching librosa's convention of frequency-major,
// time-minor layout.
func stft(signal []float32, windowSize, hop int) [][]float64 {
	window := hannWindow(windowSize)
	nBins := windowSize/2 + 1
	nFrames := 0
	if len(signal) >= windowSize {
		nFrames = (len(signal)-windowSize)/hop + 1
	} else if len(signal) > 0 {
		nFrames = 1
	}

	spec := make([][]float64, nBins)
	for i := range spec {
		spec[i] = make([]float64, nFrames)
	}
	if nFrames == 0 {
		return spec
	}

	fft := fourier.NewFFT(windowSize)
	frame := make([]float64, windowSize)

	for f := 0; f < nFrames; f++ {
		start := f * hop
		for i := 0; i < windowSize; i++ {
			var s float64
			if start+i < len(signal) {
				s = float64(signal[start+i])
			}
			frame[i] = s * window[i]
		}
		coeffs := fft.Coefficients(nil, frame)
		for b := 0; b < nBins; b++ {
			spec[b][f] = cmplxAbs(coeffs[b])
		}
	}
	return spec
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
