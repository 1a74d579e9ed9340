package testutil

import (
	"math/rand"
	"sync"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// UniformTensor returns num*dim values in [0, 1).
func (r *RNG) UniformTensor(num, dim int) []float32 {
	data := make([]float32, num*dim)
	r.FillUniform(data)
	return data
}

// Dataset returns num uniform vectors of dimension dim.
func (r *RNG) Dataset(num, dim int) *index.Dataset {
	ds, err := index.NewDataset(num, dim, r.UniformTensor(num, dim))
	if err != nil {
		panic(err)
	}
	return ds
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for {
			for j := range vec {
				vec[j] = float32(r.rand.NormFloat64())
			}
			if distance.NormalizeL2InPlace(vec) {
				break
			}
		}
		vectors[i] = vec
	}

	return vectors
}

// ClusteredTensor generates num vectors around clusters random centers in
// [0, 100)^dim with Gaussian noise of the given spread.
func (r *RNG) ClusteredTensor(num, dim, clusters int, spread float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([]float32, clusters*dim)
	for i := range centers {
		centers[i] = r.rand.Float32() * 100
	}

	data := make([]float32, num*dim)
	for i := range num {
		c := i % clusters
		for j := range dim {
			data[i*dim+j] = centers[c*dim+j] + float32(r.rand.NormFloat64())*spread
		}
	}
	return data
}

// BruteForceSearch performs exact search for ground truth.
func BruteForceSearch(ds *index.Dataset, query []float32, k int, metric distance.Metric) []index.SearchResult {
	score, err := distance.Scorer(metric)
	if err != nil {
		panic(err)
	}
	q := query
	if metric.NeedsNormalization() {
		q, _ = distance.NormalizeL2Copy(query)
	}

	results := make([]index.SearchResult, ds.Rows())
	for i := range ds.Rows() {
		v := ds.Row(i)
		if metric.NeedsNormalization() {
			v, _ = distance.NormalizeL2Copy(v)
		}
		results[i] = index.SearchResult{ID: ds.ID(i), Distance: score(q, v)}
	}

	index.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Distance = metric.Report(results[i].Distance)
	}
	return results
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []index.SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[int64]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate[:k] {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// BatchRecall averages recall over every query of res against exact search on ds.
func BatchRecall(ds, queries *index.Dataset, res *index.Result, metric distance.Metric) float64 {
	var total float64
	for q := range queries.Rows() {
		truth := BruteForceSearch(ds, queries.Row(q), res.K, metric)
		total += ComputeRecall(truth, res.Neighbors(q))
	}
	return total / float64(queries.Rows())
}
