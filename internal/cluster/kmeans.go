package cluster

import "math"

const kmeansMaxIterations = 300

// fitKMeans runs Lloyd's algorithm with k-means++ seeding and returns the
// final per-row label assignment.
func fitKMeans(data *Matrix, k int, rng *Rand) []int {
	n, f := data.Rows, data.Cols
	if k >= n {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i % k
		}
		return labels
	}

	centroids := kmeansPlusPlusSeed(data, k, rng)
	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			row := data.Row(i)
			best, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				d := squaredDist(row, centroids[c])
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if labels[i] != best {
				changed = true
				labels[i] = best
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, f)
		}
		for i := 0; i < n; i++ {
			row := data.Row(i)
			label := labels[i]
			counts[label]++
			for d := 0; d < f; d++ {
				sums[label][d] += row[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < f; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	ensureAllLabelsPresent(labels, k)
	return labels
}

func kmeansPlusPlusSeed(data *Matrix, k int, rng *Rand) [][]float64 {
	n := data.Rows
	centroids := make([][]float64, 0, k)
	first := rng.Intn(n)
	centroids = append(centroids, data.Row(first))

	distSq := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i := 0; i < n; i++ {
			row := data.Row(i)
			best := math.Inf(1)
			for _, c := range centroids {
				d := squaredDist(row, c)
				if d < best {
					best = d
				}
			}
			distSq[i] = best
			total += best
		}
		if total <= 0 {
			centroids = append(centroids, data.Row(rng.Intn(n)))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := n - 1
		for i := 0; i < n; i++ {
			cum += distSq[i]
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, data.Row(chosen))
	}
	return centroids
}

func squaredDist(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

// ensureAllLabelsPresent reassigns one point from the largest cluster to
// any cluster that ended up empty, so downstream per-cluster statistics
// never divide by zero. Empty clusters can occur with pathological
// centroid collisions.
func ensureAllLabelsPresent(labels []int, k int) {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		largest := 0
		for i := 1; i < k; i++ {
			if counts[i] > counts[largest] {
				largest = i
			}
		}
		for i, l := range labels {
			if l == largest {
				labels[i] = c
				counts[largest]--
				counts[c]++
				break
			}
		}
	}
}
