package cluster

import "math"

// projectTSNE fits a plain (non-Barnes-Hut) t-SNE embedding: pairwise
// affinities are computed exactly rather than approximated with a
// quadtree, which is an acceptable trade given library-sized inputs. angle
// is accepted for parity with the tuning knob a Barnes-Hut implementation
// would expose but does not affect this exact variant.
func projectTSNE(samples *Matrix, dims int, perplexity, angle float64, rng *Rand) *Matrix {
	n := samples.Rows

	p := computeAffinities(samples, perplexity)

	const earlyExaggeration = 4.0
	const exaggerationIters = 100
	const iterations = 500
	const learningRate = 200.0
	const momentumFinal = 0.8
	const momentumInitial = 0.5

	y := NewMatrix(n, dims)
	for i := 0; i < n; i++ {
		for d := 0; d < dims; d++ {
			y.Set(i, d, rng.NormFloat64()*1e-4)
		}
	}

	gains := make([]float64, n*dims)
	for i := range gains {
		gains[i] = 1.0
	}
	velocity := make([]float64, n*dims)

	for iter := 0; iter < iterations; iter++ {
		exaggeration := 1.0
		if iter < exaggerationIters {
			exaggeration = earlyExaggeration
		}
		momentum := momentumInitial
		if iter > 250 {
			momentum = momentumFinal
		}

		qNumerators, qSum := studentTAffinities(y)
		grad := make([]float64, n*dims)

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				pij := p[i*n+j] * exaggeration
				qij := qNumerators[i*n+j] / qSum
				mult := 4 * (pij - qij) * qNumerators[i*n+j]
				for d := 0; d < dims; d++ {
					grad[i*dims+d] += mult * (y.At(i, d) - y.At(j, d))
				}
			}
		}

		for i := 0; i < n*dims; i++ {
			sign := func(x float64) float64 {
				if x < 0 {
					return -1
				}
				return 1
			}
			if sign(grad[i]) != sign(velocity[i]) {
				gains[i] += 0.2
			} else {
				gains[i] *= 0.8
			}
			if gains[i] < 0.01 {
				gains[i] = 0.01
			}
			velocity[i] = momentum*velocity[i] - learningRate*gains[i]*grad[i]
		}
		for i := 0; i < n; i++ {
			for d := 0; d < dims; d++ {
				y.Set(i, d, y.At(i, d)+velocity[i*dims+d])
			}
		}
	}

	return y
}

// computeAffinities builds the symmetrized, probability-normalized
// high-dimensional affinity matrix p_ij, binary-searching each point's
// Gaussian bandwidth so its conditional distribution matches the target
// perplexity.
func computeAffinities(samples *Matrix, perplexity float64) []float64 {
	n := samples.Rows
	distSq := make([]float64, n*n)
	for i := 0; i < n; i++ {
		ri := samples.Row(i)
		for j := i + 1; j < n; j++ {
			rj := samples.Row(j)
			var d float64
			for k := range ri {
				diff := ri[k] - rj[k]
				d += diff * diff
			}
			distSq[i*n+j] = d
			distSq[j*n+i] = d
		}
	}

	logTargetEntropy := math.Log(perplexity)
	condP := make([]float64, n*n)

	for i := 0; i < n; i++ {
		beta := 1.0
		betaMin, betaMax := math.Inf(-1), math.Inf(1)

		for iter := 0; iter < 50; iter++ {
			var sum float64
			row := make([]float64, n)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				row[j] = math.Exp(-distSq[i*n+j] * beta)
				sum += row[j]
			}
			if sum <= 0 {
				sum = 1e-12
			}
			var entropy float64
			for j := 0; j < n; j++ {
				if j == i || row[j] <= 0 {
					continue
				}
				pj := row[j] / sum
				entropy -= pj * math.Log(pj)
			}
			diff := entropy - logTargetEntropy
			if math.Abs(diff) < 1e-5 {
				for j := 0; j < n; j++ {
					condP[i*n+j] = row[j] / sum
				}
				break
			}
			if diff > 0 {
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				if math.IsInf(betaMin, -1) {
					beta /= 2
				} else {
					beta = (beta + betaMin) / 2
				}
			}
			for j := 0; j < n; j++ {
				condP[i*n+j] = row[j] / sum
			}
		}
	}

	p := make([]float64, n*n)
	denom := float64(2 * n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := (condP[i*n+j] + condP[j*n+i]) / denom
			if v < 1e-12 {
				v = 1e-12
			}
			p[i*n+j] = v
		}
	}
	return p
}

// studentTAffinities computes the unnormalized Student-t kernel numerators
// q_ij (before dividing by their sum) for the current low-dimensional
// embedding.
func studentTAffinities(y *Matrix) (numerators []float64, sum float64) {
	n := y.Rows
	numerators = make([]float64, n*n)
	for i := 0; i < n; i++ {
		yi := y.Row(i)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			yj := y.Row(j)
			var d float64
			for k := range yi {
				diff := yi[k] - yj[k]
				d += diff * diff
			}
			v := 1.0 / (1.0 + d)
			numerators[i*n+j] = v
			sum += v
		}
	}
	if sum <= 0 {
		sum = 1e-12
	}
	return numerators, sum
}
