package cluster

import "math/rand"

// Rand is a thin wrapper around a seeded *rand.Rand so every random draw in
// the pipeline -- t-SNE initialization, reference-dataset sampling,
// k-means/GMM seeding -- is reproducible from a single seed.
type Rand struct {
	*rand.Rand
}

// NewRand builds a deterministic generator from seed.
func NewRand(seed uint64) *Rand {
	return &Rand{Rand: rand.New(rand.NewSource(int64(seed)))}
}

// Uniform draws a value uniformly from [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}
