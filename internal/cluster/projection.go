package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// project dispatches to the requested projection method, producing an N x
// EmbeddingSize matrix (or the original N x F matrix, unprojected, for
// ProjectionNone).
func project(samples *Matrix, method ProjectionMethod, rng *Rand) (*Matrix, error) {
	switch method {
	case ProjectionPCA:
		return projectPCA(samples, EmbeddingSize)
	case ProjectionTSNE:
		perplexity := maxFloat(float64(samples.Rows)/20.0, 5.0)
		return projectTSNE(samples, EmbeddingSize, perplexity, 0.5, rng), nil
	default:
		return samples, nil
	}
}

// projectPCA fits a whitened PCA to the samples and returns the first
// `dims` principal-component scores for every row.
func projectPCA(samples *Matrix, dims int) (*Matrix, error) {
	raw := mat.NewDense(samples.Rows, samples.Cols, samples.Data)

	vectors, vars := stat.PrincipalComponents(raw, nil)
	if vectors == nil {
		return nil, fmt.Errorf("cluster: PCA failed to converge")
	}

	n := samples.Rows
	effectiveDims := dims
	if effectiveDims > samples.Cols {
		effectiveDims = samples.Cols
	}

	var scores mat.Dense
	scores.Mul(raw, vectors.Slice(0, samples.Cols, 0, effectiveDims))

	out := NewMatrix(n, effectiveDims)
	for r := 0; r < n; r++ {
		for c := 0; c < effectiveDims; c++ {
			v := scores.At(r, c)
			// Whiten: divide each component by its standard deviation so
			// every axis contributes comparably to downstream distances.
			sd := math.Sqrt(math.Max(vars[c], 0))
			if sd > 1e-12 {
				v /= sd
			}
			out.Set(r, c, v)
		}
	}
	return out, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// normalizeColumnsInPlace min-max scales each column of m into [-1, 1].
// Constant columns (max == min) are left at 0.
func normalizeColumnsInPlace(m *Matrix) {
	for c := 0; c < m.Cols; c++ {
		min, max := m.At(0, c), m.At(0, c)
		for r := 1; r < m.Rows; r++ {
			v := m.At(r, c)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		rng := max - min
		for r := 0; r < m.Rows; r++ {
			if rng <= 0 {
				m.Set(r, c, 0)
				continue
			}
			v := m.At(r, c)
			m.Set(r, c, 2*(v-min)/rng-1)
		}
	}
}
