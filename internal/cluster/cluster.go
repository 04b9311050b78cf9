// Package cluster groups song feature vectors into a data-driven number of
// clusters. It follows a typestate pipeline -- EntryPoint -> NotInitialized
// -> Initialized -> Finished -- where each stage only exposes the
// operations valid for it, mirroring the way the recluster job consumes it:
// project, pick k, fit, then bucket.
package cluster

import (
	"errors"
	"fmt"
)

// NumberFeatures is the fixed dimensionality of a song's feature vector, as
// produced by the chroma extractor.
const NumberFeatures = 13

// EmbeddingSize is the target dimensionality for PCA/t-SNE projection:
// max(2, floor(log2(NumberFeatures))).
var EmbeddingSize = embeddingSize(NumberFeatures)

func embeddingSize(f int) int {
	log2 := 0
	for n := f; n > 1; n >>= 1 {
		log2++
	}
	if log2 < 2 {
		return 2
	}
	return log2
}

// SmallLibraryError is returned when there are too few songs to cluster
// meaningfully.
type SmallLibraryError struct {
	Rows int
}

func (e *SmallLibraryError) Error() string {
	return fmt.Sprintf("cluster: library has only %d songs, need more than 15", e.Rows)
}

// ProjectionError wraps a failure in the PCA or t-SNE projection step.
type ProjectionError struct {
	Err error
}

func (e *ProjectionError) Error() string { return fmt.Sprintf("cluster: projection failed: %v", e.Err) }
func (e *ProjectionError) Unwrap() error { return e.Err }

// OptimalKNotFoundError is returned when the gap statistic never finds a k
// satisfying its stopping rule within [1, KMax].
type OptimalKNotFoundError struct {
	KMax int
}

func (e *OptimalKNotFoundError) Error() string {
	return fmt.Sprintf("cluster: no optimal k found within k_max=%d", e.KMax)
}

// ProjectionMethod selects how the raw feature matrix is projected before
// clustering.
type ProjectionMethod int

const (
	ProjectionNone ProjectionMethod = iota
	ProjectionPCA
	ProjectionTSNE
)

// ClusteringMethod selects the algorithm used to partition the projected
// embeddings.
type ClusteringMethod int

const (
	ClusteringKMeans ClusteringMethod = iota
	ClusteringGMM
)

func (m ClusteringMethod) fit(data *Matrix, k int, rng *Rand) []int {
	switch m {
	case ClusteringGMM:
		return fitGMM(data, k, rng)
	default:
		return fitKMeans(data, k, rng)
	}
}

// Matrix is a dense row-major N x F matrix of feature observations.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zeroed Rows x Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at (r, c).
func (m *Matrix) At(r, c int) float64 { return m.Data[r*m.Cols+c] }

// Set assigns the value at (r, c).
func (m *Matrix) Set(r, c int, v float64) { m.Data[r*m.Cols+c] = v }

// Row returns a copy of row r.
func (m *Matrix) Row(r int) []float64 {
	out := make([]float64, m.Cols)
	copy(out, m.Data[r*m.Cols:(r+1)*m.Cols])
	return out
}

// EntryPoint is the zero-value starting state of the pipeline.
type EntryPoint struct{}

// NotInitialized holds the projected embeddings and waits for k-selection.
type NotInitialized struct {
	embeddings *Matrix
	kMax       int
	gapB       int
	method     ClusteringMethod
	rng        *Rand
}

// Initialized holds the optimal k chosen by the gap statistic, ready to fit.
type Initialized struct {
	embeddings *Matrix
	k          int
	method     ClusteringMethod
	rng        *Rand
}

// Finished holds the final per-row cluster labels.
type Finished struct {
	labels []int
	k      int
}

// New is the EntryPoint -> NotInitialized transition: it rejects
// insufficient input, projects the feature matrix per projectionMethod, and
// min-max normalizes each resulting column into [-1, 1]. seed makes every
// internal random draw (t-SNE initialization, reference-dataset sampling,
// k-means/GMM initialization) deterministic.
func New(
	samples *Matrix,
	kMax int,
	gapB int,
	method ClusteringMethod,
	projectionMethod ProjectionMethod,
	seed uint64,
) (*NotInitialized, error) {
	if samples.Rows <= 15 {
		return nil, &SmallLibraryError{Rows: samples.Rows}
	}

	rng := NewRand(seed)

	embeddings, err := project(samples, projectionMethod, rng)
	if err != nil {
		return nil, &ProjectionError{Err: err}
	}
	normalizeColumnsInPlace(embeddings)

	return &NotInitialized{
		embeddings: embeddings,
		kMax:       kMax,
		gapB:       gapB,
		method:     method,
		rng:        rng,
	}, nil
}

// Initialize is the NotInitialized -> Initialized transition: it runs the
// gap statistic over k = 1..=kMax and fixes the chosen k.
func (n *NotInitialized) Initialize() (*Initialized, error) {
	k, err := optimalKGapStatistic(n.embeddings, n.kMax, n.gapB, n.method, n.rng)
	if err != nil {
		return nil, err
	}
	return &Initialized{
		embeddings: n.embeddings,
		k:          k,
		method:     n.method,
		rng:        n.rng,
	}, nil
}

// EmbeddingDims returns the embedding matrix's column count after
// projection, useful for diagnostics.
func (n *NotInitialized) EmbeddingDims() int { return n.embeddings.Cols }

// Cluster is the Initialized -> Finished transition: it fits the chosen
// clustering method once, at k, and stores per-row labels.
func (in *Initialized) Cluster() *Finished {
	labels := in.method.fit(in.embeddings, in.k, in.rng)
	return &Finished{labels: labels, k: in.k}
}

// K is the optimal cluster count chosen by Initialize.
func (in *Initialized) K() int { return in.k }

// K is the final cluster count used to produce labels.
func (f *Finished) K() int { return f.k }

// Labels returns the raw per-row cluster assignment, one entry per input
// row in original order.
func (f *Finished) Labels() []int {
	out := make([]int, len(f.labels))
	copy(out, f.labels)
	return out
}

// Group buckets a caller-supplied slice (one entry per original input row,
// same order as the matrix passed to New) into f.K() groups by label.
func Group[T any](f *Finished, items []T) ([][]T, error) {
	if len(items) != len(f.labels) {
		return nil, errors.New("cluster: items length does not match label count")
	}
	groups := make([][]T, f.k)
	for i, label := range f.labels {
		groups[label] = append(groups[label], items[i])
	}
	return groups, nil
}
