package cluster

import (
	"errors"
	"testing"
)

// blobs builds nPerBlob points in F-dimensional space scattered tightly
// around nBlobs well-separated centers, for exercising the gap statistic
// against ground truth it should recover.
func blobs(nBlobs, nPerBlob, dims int, spread float64, rng *Rand) *Matrix {
	m := NewMatrix(nBlobs*nPerBlob, dims)
	centers := make([][]float64, nBlobs)
	for b := 0; b < nBlobs; b++ {
		centers[b] = make([]float64, dims)
		for d := 0; d < dims; d++ {
			centers[b][d] = float64(b) * 10.0
		}
	}
	row := 0
	for b := 0; b < nBlobs; b++ {
		for i := 0; i < nPerBlob; i++ {
			for d := 0; d < dims; d++ {
				m.Set(row, d, centers[b][d]+rng.NormFloat64()*spread)
			}
			row++
		}
	}
	return m
}

func TestGapStatisticRecoversKnownClusterCount(t *testing.T) {
	rng := NewRand(42)
	data := blobs(3, 20, 4, 0.3, rng)

	k, err := optimalKGapStatistic(data, 6, 10, ClusteringKMeans, rng)
	if err != nil {
		t.Fatalf("optimalKGapStatistic: %v", err)
	}
	if k != 3 {
		t.Fatalf("expected optimal k=3 for 3 well-separated blobs, got %d", k)
	}
}

func TestNewRejectsSmallLibrary(t *testing.T) {
	m := NewMatrix(10, NumberFeatures)
	_, err := New(m, 5, 10, ClusteringKMeans, ProjectionNone, 1)
	var smallErr *SmallLibraryError
	if !errors.As(err, &smallErr) {
		t.Fatalf("expected SmallLibraryError, got %T: %v", err, err)
	}
}

func TestFullPipelineNoProjection(t *testing.T) {
	rng := NewRand(7)
	data := blobs(3, 20, NumberFeatures, 0.2, rng)

	notInit, err := New(data, 6, 8, ClusteringKMeans, ProjectionNone, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	init, err := notInit.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	finished := init.Cluster()

	if finished.K() != init.K() {
		t.Fatalf("Finished.K()=%d want %d", finished.K(), init.K())
	}
	labels := finished.Labels()
	if len(labels) != data.Rows {
		t.Fatalf("expected %d labels, got %d", data.Rows, len(labels))
	}
	for _, l := range labels {
		if l < 0 || l >= finished.K() {
			t.Fatalf("label %d out of range [0,%d)", l, finished.K())
		}
	}
}

func TestFullPipelinePCA(t *testing.T) {
	rng := NewRand(11)
	data := blobs(4, 25, NumberFeatures, 0.2, rng)

	notInit, err := New(data, 6, 6, ClusteringKMeans, ProjectionPCA, 11)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if notInit.EmbeddingDims() != EmbeddingSize {
		t.Fatalf("expected embedding dims %d, got %d", EmbeddingSize, notInit.EmbeddingDims())
	}

	init, err := notInit.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	finished := init.Cluster()
	groups, err := Group(finished, makeIndexSlice(data.Rows))
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(groups) != finished.K() {
		t.Fatalf("expected %d groups, got %d", finished.K(), len(groups))
	}
}

func makeIndexSlice(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestGroupRejectsLengthMismatch(t *testing.T) {
	f := &Finished{labels: []int{0, 1, 0}, k: 2}
	_, err := Group(f, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for length mismatch")
	}
}
