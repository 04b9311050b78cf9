package cluster

import "math"

// optimalKGapStatistic runs the gap statistic (Tibshirani, Walther &
// Hastie 2001) over k = 1..=kMax and returns the smallest k satisfying
// gap(k) >= gap(k+1) - s(k+1), i.e. the first k whose successor's gap
// exceeds it by no more than one standard error.
func optimalKGapStatistic(embeddings *Matrix, kMax, b int, method ClusteringMethod, rng *Rand) (int, error) {
	references := make([]*Matrix, b)
	for i := range references {
		references[i] = generateReferenceDataset(embeddings, rng)
	}

	type result struct {
		k    int
		gap  float64
		s    float64
	}
	results := make([]result, 0, kMax)

	for k := 1; k <= kMax; k++ {
		labels := method.fit(embeddings, k, rng)
		wk := withinDispersion(embeddings, labels, k)

		logRefs := make([]float64, b)
		for i, ref := range references {
			refLabels := method.fit(ref, k, rng)
			wkb := withinDispersion(ref, refLabels, k)
			logRefs[i] = math.Log2(wkb)
		}

		var sum float64
		for _, v := range logRefs {
			sum += v
		}
		l := sum / float64(b)
		gapK := l - math.Log2(wk)

		var sqDiffSum float64
		for _, v := range logRefs {
			d := v - l
			sqDiffSum += d * d
		}
		sd := math.Sqrt(sqDiffSum / float64(b))
		sk := sd * math.Sqrt(1.0+1.0/float64(b))

		results = append(results, result{k: k, gap: gapK, s: sk})
	}

	var havePrev bool
	var prevGap float64
	for _, r := range results {
		if havePrev && prevGap >= r.gap-r.s {
			return r.k - 1, nil
		}
		prevGap = r.gap
		havePrev = true
	}
	return 0, &OptimalKNotFoundError{KMax: kMax}
}

// generateReferenceDataset samples each column uniformly over the
// observed column's [min, max] range, matching method (1) of the gap
// statistic paper: simpler than a PCA-aligned reference box, and
// appropriate here since feature ordering is meaningful and the data is
// already normalized.
func generateReferenceDataset(samples *Matrix, rng *Rand) *Matrix {
	out := NewMatrix(samples.Rows, samples.Cols)
	for c := 0; c < samples.Cols; c++ {
		min, max := samples.At(0, c), samples.At(0, c)
		for r := 1; r < samples.Rows; r++ {
			v := samples.At(r, c)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		for r := 0; r < samples.Rows; r++ {
			out.Set(r, c, rng.Uniform(min, max))
		}
	}
	return out
}

// withinDispersion computes W_k = sum_r D_r / (2 n_r), where D_r is twice
// the sum of pairwise Euclidean distances within cluster r (the "counted
// twice" convention the reference implementation uses).
func withinDispersion(data *Matrix, labels []int, k int) float64 {
	clusters := make([][]int, k)
	for i, l := range labels {
		clusters[l] = append(clusters[l], i)
	}

	var wk float64
	for _, members := range clusters {
		n := len(members)
		if n == 0 {
			continue
		}
		var pairwiseSum float64
		for i := 0; i < n-1; i++ {
			a := data.Row(members[i])
			for j := i + 1; j < n; j++ {
				b := data.Row(members[j])
				pairwiseSum += math.Sqrt(squaredDist(a, b))
			}
		}
		dr := pairwiseSum + pairwiseSum
		wk += dr / (2 * float64(n))
	}
	return wk
}
