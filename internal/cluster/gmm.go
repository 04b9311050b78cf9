package cluster

import "math"

const (
	gmmMaxIterations = 100
	gmmMinVariance   = 1e-6
	gmmRuns          = 10
)

// gaussianComponent is a diagonal-covariance Gaussian: full covariance
// matrices are unnecessary here since the projected embedding axes are
// already decorrelated by PCA/t-SNE (or are the independent chroma
// features themselves under no projection).
type gaussianComponent struct {
	weight float64
	mean   []float64
	varnc  []float64
}

// fitGMM fits a k-component Gaussian mixture via expectation-maximization,
// initialized from a k-means partition, and returns the MAP label for
// each row. It restarts gmmRuns times from independent k-means seeds and
// keeps the run with the best final log-likelihood, mirroring a
// multi-restart EM fit.
func fitGMM(data *Matrix, k int, rng *Rand) []int {
	bestLL := math.Inf(-1)
	var bestLabels []int

	for run := 0; run < gmmRuns; run++ {
		labels, ll := fitGMMOnce(data, k, rng)
		if ll > bestLL {
			bestLL = ll
			bestLabels = labels
		}
	}
	return bestLabels
}

func fitGMMOnce(data *Matrix, k int, rng *Rand) ([]int, float64) {
	n, f := data.Rows, data.Cols
	init := fitKMeans(data, k, rng)
	components := initGaussians(data, init, k)

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	var logLikelihood float64
	for iter := 0; iter < gmmMaxIterations; iter++ {
		logLikelihood = 0
		for i := 0; i < n; i++ {
			row := data.Row(i)
			dens := make([]float64, k)
			var total float64
			for c := 0; c < k; c++ {
				dens[c] = components[c].weight * gaussianDensity(row, components[c])
				total += dens[c]
			}
			if total <= 0 {
				total = 1e-300
			}
			logLikelihood += math.Log(total)
			for c := 0; c < k; c++ {
				resp[i][c] = dens[c] / total
			}
		}

		for c := 0; c < k; c++ {
			var nk float64
			mean := make([]float64, f)
			for i := 0; i < n; i++ {
				row := data.Row(i)
				r := resp[i][c]
				nk += r
				for d := 0; d < f; d++ {
					mean[d] += r * row[d]
				}
			}
			if nk <= 1e-12 {
				continue
			}
			for d := range mean {
				mean[d] /= nk
			}
			varnc := make([]float64, f)
			for i := 0; i < n; i++ {
				row := data.Row(i)
				r := resp[i][c]
				for d := 0; d < f; d++ {
					diff := row[d] - mean[d]
					varnc[d] += r * diff * diff
				}
			}
			for d := range varnc {
				varnc[d] = varnc[d]/nk + gmmMinVariance
			}
			components[c].mean = mean
			components[c].varnc = varnc
			components[c].weight = nk / float64(n)
		}
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestResp := 0, -1.0
		for c := 0; c < k; c++ {
			if resp[i][c] > bestResp {
				bestResp, best = resp[i][c], c
			}
		}
		labels[i] = best
	}
	ensureAllLabelsPresent(labels, k)
	return labels, logLikelihood
}

func initGaussians(data *Matrix, labels []int, k int) []gaussianComponent {
	n, f := data.Rows, data.Cols
	components := make([]gaussianComponent, k)
	counts := make([]int, k)
	for c := range components {
		components[c].mean = make([]float64, f)
		components[c].varnc = make([]float64, f)
	}
	for i := 0; i < n; i++ {
		row := data.Row(i)
		c := labels[i]
		counts[c]++
		for d := 0; d < f; d++ {
			components[c].mean[d] += row[d]
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			components[c].weight = 1.0 / float64(k)
			for d := range components[c].varnc {
				components[c].varnc[d] = 1.0
			}
			continue
		}
		for d := range components[c].mean {
			components[c].mean[d] /= float64(counts[c])
		}
		components[c].weight = float64(counts[c]) / float64(n)
	}
	for i := 0; i < n; i++ {
		row := data.Row(i)
		c := labels[i]
		for d := 0; d < f; d++ {
			diff := row[d] - components[c].mean[d]
			components[c].varnc[d] += diff * diff
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		for d := range components[c].varnc {
			components[c].varnc[d] = components[c].varnc[d]/float64(counts[c]) + gmmMinVariance
		}
	}
	return components
}

func gaussianDensity(x []float64, comp gaussianComponent) float64 {
	var logDensity float64
	for d := range x {
		diff := x[d] - comp.mean[d]
		v := comp.varnc[d]
		logDensity += -0.5*math.Log(2*math.Pi*v) - (diff*diff)/(2*v)
	}
	return math.Exp(logDensity)
}
