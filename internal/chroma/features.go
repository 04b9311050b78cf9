package chroma

import "math"

// intervalTemplates are the 12x10 0/1 exponent templates from the
// timbre-invariant interval-class feature paper. Row 0 (the root) is set
// in every template; columns 0-5 are the dyad templates (interval classes
// IC1-IC6), columns 6-9 are the major/minor/diminished/augmented triad
// templates.
var intervalTemplates = [12][10]int{
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 1, 0, 0, 0, 0, 1, 1, 0},
	{0, 0, 0, 1, 0, 0, 1, 0, 0, 1},
	{0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 1, 0, 0, 1, 0},
	{0, 0, 0, 0, 0, 0, 1, 1, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
}

const (
	maxL2Interval         = 0.25
	maxL2Triad            = 0.025
	maxTriadIntervalRatio = math.Pi / 2
)

// normalizeFeatureSequence L1-normalizes each column of chroma by the sum
// of absolute values, leaving near-silent columns untouched.
func normalizeFeatureSequence(chroma [][]float64) [][]float64 {
	nChroma := len(chroma)
	nFrames := 0
	if nChroma > 0 {
		nFrames = len(chroma[0])
	}
	out := make([][]float64, nChroma)
	for c := range out {
		out[c] = make([]float64, nFrames)
		copy(out[c], chroma[c])
	}
	for f := 0; f < nFrames; f++ {
		var sum float64
		for c := 0; c < nChroma; c++ {
			sum += math.Abs(out[c][f])
		}
		if sum >= 0.0001 {
			for c := 0; c < nChroma; c++ {
				out[c][f] /= sum
			}
		}
	}
	return out
}

// extractIntervalFeatures computes, per frame and per template column, the
// sum over the 12 cyclic pitch rotations of the product of chroma raised
// to the (rotated) template's 0/1 exponents.
func extractIntervalFeatures(chroma [][]float64) [10][]float64 {
	nFrames := 0
	if len(chroma) > 0 {
		nFrames = len(chroma[0])
	}
	var out [10][]float64
	for t := range out {
		out[t] = make([]float64, nFrames)
	}

	for t := 0; t < 10; t++ {
		template := make([]int, 12)
		for r := 0; r < 12; r++ {
			template[r] = intervalTemplates[r][t]
		}
		for shift := 0; shift < 12; shift++ {
			rolled := rotateRight(template, shift)
			for f := 0; f < nFrames; f++ {
				product := 1.0
				for c := 0; c < 12; c++ {
					if rolled[c] != 0 {
						product *= chroma[c][f]
					}
				}
				out[t][f] += product
			}
		}
	}
	return out
}

func rotateRight(xs []int, shift int) []int {
	n := len(xs)
	if n == 0 {
		return xs
	}
	shift = ((shift % n) + n) % n
	out := make([]int, n)
	for i, x := range xs {
		out[(i+shift)%n] = x
	}
	return out
}

// chromaIntervalFeatures exponentiates and re-normalizes the chromagram,
// extracts the 10 interval-template features, and averages them across
// frames into a single 10-vector.
func chromaIntervalFeatures(chroma [][]float64) [10]float64 {
	scaled := make([][]float64, len(chroma))
	for c := range chroma {
		scaled[c] = make([]float64, len(chroma[c]))
		for f, v := range chroma[c] {
			scaled[c][f] = math.Exp(v * 15)
		}
	}
	normalized := normalizeFeatureSequence(scaled)
	perFrame := extractIntervalFeatures(normalized)

	var mean [10]float64
	nFrames := 0
	if len(normalized) > 0 {
		nFrames = len(normalized[0])
	}
	if nFrames == 0 {
		return mean
	}
	for t := 0; t < 10; t++ {
		var sum float64
		for _, v := range perFrame[t] {
			sum += v
		}
		mean[t] = sum / float64(nFrames)
	}
	return mean
}

func remap(x, maxValue float64) float64 {
	v := 2*(x-0)/(maxValue-0) - 1
	if v > 1 {
		v = 1
	}
	return v
}

// Extract runs the full STFT -> tuning -> chroma filter bank -> interval
// feature pipeline on mono float32 PCM sampled at SampleRate, returning
// the 13-element feature vector: 10 normalized+remapped interval
// features, the remapped (l2_norm_ic, l2_norm_triad) scalar pair, and the
// remapped triad/interval angle ratio.
func Extract(signal []float32) []float64 {
	spectrum := stft(signal, WindowSize, HopSize)
	tuning := estimateTuning(spectrum, WindowSize, 0.01, NChroma)
	chromaFrames := chromaSTFT(spectrum, WindowSize, NChroma, tuning)
	raw := chromaIntervalFeatures(chromaFrames)

	var ic [6]float64
	var ic4 [4]float64
	for i := 0; i < 6; i++ {
		ic[i] = raw[i]
	}
	for i := 0; i < 4; i++ {
		ic4[i] = raw[6+i]
	}

	l2IC := l2Norm(ic[:])
	l2Triad := l2Norm(ic4[:])

	features := make([]float64, 0, 13)
	if l2IC > 0 {
		for i := range ic {
			ic[i] /= l2IC
		}
	}
	if l2Triad > 0 {
		for i := range ic4 {
			ic4[i] /= l2Triad
		}
	}
	for _, v := range ic {
		features = append(features, remap(v, maxL2Interval))
	}
	for _, v := range ic4 {
		features = append(features, remap(v, maxL2Triad))
	}

	features = append(features, remap(l2IC, maxL2Interval))
	features = append(features, remap(l2Triad, maxL2Triad))

	angle := math.Atan2(20*l2Triad, l2IC+1e-12)
	features = append(features, remap(angle, maxTriadIntervalRatio))

	return features
}

func l2Norm(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x * x
	}
	return math.Sqrt(sum)
}
