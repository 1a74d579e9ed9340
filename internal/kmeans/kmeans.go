package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/viterin/vek/vek32"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/resource"
)

// ErrInsufficientData is returned when there are fewer rows than clusters.
var ErrInsufficientData = errors.New("kmeans: fewer training vectors than clusters")

// Init selects how the initial centroids are chosen.
type Init int

const (
	// InitRandom picks K distinct rows uniformly at random.
	InitRandom Init = iota
	// InitPlusPlus uses k-means++ seeding.
	InitPlusPlus
)

const (
	DefaultMaxIter              = 25
	DefaultMaxPointsPerCentroid = 256
	DefaultTolerance            = 1e-3
)

// Config controls a training run.
type Config struct {
	K       int
	MaxIter int
	Seed    int64
	Metric  distance.Metric
	Init    Init

	// MaxPointsPerCentroid caps the training sample at K*MaxPointsPerCentroid rows.
	// Negative disables sampling.
	MaxPointsPerCentroid int

	// Tolerance stops training once fewer than this fraction of rows move.
	Tolerance float64
}

func (c *Config) setDefaults() {
	if c.MaxIter <= 0 {
		c.MaxIter = DefaultMaxIter
	}
	if c.MaxPointsPerCentroid == 0 {
		c.MaxPointsPerCentroid = DefaultMaxPointsPerCentroid
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
}

// Result is the outcome of a training run.
type Result struct {
	// Centroids holds K*dim values.
	Centroids  []float32
	Iterations int
	Converged  bool
	// Inertia is the sum of scores of every training row to its centroid.
	Inertia float64
}

// Train clusters the rows of vectors (n*dim values) into cfg.K centroids.
//
// For MetricCosine the rows must already be L2-normalized; centroids are
// re-normalized after every update.
func Train(ctx context.Context, pool *resource.Pool, vectors []float32, dim int, cfg Config) (*Result, error) {
	if dim <= 0 || len(vectors)%dim != 0 {
		return nil, fmt.Errorf("kmeans: invalid dimension %d for %d values", dim, len(vectors))
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("kmeans: invalid cluster count %d", cfg.K)
	}
	score, err := distance.Scorer(cfg.Metric)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()

	n := len(vectors) / dim
	if n < cfg.K {
		return nil, fmt.Errorf("%w: %d rows, %d clusters", ErrInsufficientData, n, cfg.K)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	train := sample(rng, vectors, dim, cfg)
	n = len(train) / dim

	var centroids []float32
	switch cfg.Init {
	case InitPlusPlus:
		centroids, err = initPlusPlus(ctx, pool, rng, train, dim, cfg.K, score)
		if err != nil {
			return nil, err
		}
	default:
		centroids = initRandom(rng, train, dim, cfg.K)
	}

	labels := make([]int32, n)
	for i := range labels {
		labels[i] = -1
	}
	scores := make([]float32, n)

	res := &Result{Centroids: centroids}
	for iter := 0; iter < cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed, err := assignInto(ctx, pool, train, centroids, dim, score, labels, scores)
		if err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		if float64(changed) < cfg.Tolerance*float64(n) {
			res.Converged = true
			break
		}

		if err := update(ctx, pool, train, centroids, dim, cfg.K, labels, scores, cfg.Metric); err != nil {
			return nil, err
		}
	}

	var inertia float64
	for _, s := range scores {
		inertia += float64(s)
	}
	res.Inertia = inertia

	return res, nil
}

// Assign returns, for every row of vectors, the nearest centroid and its score.
// Ties resolve to the lower centroid id.
func Assign(ctx context.Context, pool *resource.Pool, vectors, centroids []float32, dim int, metric distance.Metric) ([]int32, []float32, error) {
	score, err := distance.Scorer(metric)
	if err != nil {
		return nil, nil, err
	}
	n := len(vectors) / dim
	labels := make([]int32, n)
	scores := make([]float32, n)
	if _, err := assignInto(ctx, pool, vectors, centroids, dim, score, labels, scores); err != nil {
		return nil, nil, err
	}
	return labels, scores, nil
}

// Nearest returns the id and score of the centroid closest to vec.
func Nearest(vec, centroids []float32, dim int, score distance.Func) (int, float32) {
	k := len(centroids) / dim
	best := -1
	bestScore := float32(math.MaxFloat32)

	for j := 0; j < k; j++ {
		s := score(vec, centroids[j*dim:(j+1)*dim])
		if best < 0 || s < bestScore {
			best = j
			bestScore = s
		}
	}

	return best, bestScore
}

func sample(rng *rand.Rand, vectors []float32, dim int, cfg Config) []float32 {
	n := len(vectors) / dim
	if cfg.MaxPointsPerCentroid < 0 {
		return vectors
	}
	limit := cfg.K * cfg.MaxPointsPerCentroid
	if n <= limit {
		return vectors
	}

	perm := rng.Perm(n)[:limit]
	out := make([]float32, limit*dim)
	for i, row := range perm {
		copy(out[i*dim:(i+1)*dim], vectors[row*dim:(row+1)*dim])
	}
	return out
}

func initRandom(rng *rand.Rand, vectors []float32, dim, k int) []float32 {
	n := len(vectors) / dim
	centroids := make([]float32, k*dim)

	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}
	return centroids
}

func initPlusPlus(ctx context.Context, pool *resource.Pool, rng *rand.Rand, vectors []float32, dim, k int, score distance.Func) ([]float32, error) {
	n := len(vectors) / dim
	centroids := make([]float32, k*dim)

	first := rng.Intn(n)
	copy(centroids[:dim], vectors[first*dim:(first+1)*dim])

	// Distances are shifted to be non-negative so IP scores work as weights.
	minScore := make([]float64, n)
	for i := range minScore {
		minScore[i] = math.Inf(1)
	}

	for c := 1; c < k; c++ {
		prev := centroids[(c-1)*dim : c*dim]
		err := pool.ParallelRange(ctx, n, 256, func(_ context.Context, lo, hi int) error {
			for i := lo; i < hi; i++ {
				s := float64(score(vectors[i*dim:(i+1)*dim], prev))
				if s < minScore[i] {
					minScore[i] = s
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		floor := math.Inf(1)
		for _, s := range minScore {
			floor = math.Min(floor, s)
		}

		var total float64
		for _, s := range minScore {
			total += s - floor
		}

		pick := rng.Intn(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, s := range minScore {
				target -= s - floor
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		copy(centroids[c*dim:(c+1)*dim], vectors[pick*dim:(pick+1)*dim])
	}

	return centroids, nil
}

func assignInto(ctx context.Context, pool *resource.Pool, vectors, centroids []float32, dim int, score distance.Func, labels []int32, scores []float32) (int, error) {
	n := len(vectors) / dim
	size := 256
	chunks := (n + size - 1) / size
	chunkChanged := make([]int, chunks)

	err := pool.ParallelFor(ctx, chunks, func(ctx context.Context, c int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		lo := c * size
		hi := min(lo+size, n)
		for i := lo; i < hi; i++ {
			best, s := Nearest(vectors[i*dim:(i+1)*dim], centroids, dim, score)
			if labels[i] != int32(best) {
				labels[i] = int32(best)
				chunkChanged[c]++
			}
			scores[i] = s
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, c := range chunkChanged {
		changed += c
	}
	return changed, nil
}

func update(ctx context.Context, pool *resource.Pool, vectors, centroids []float32, dim, k int, labels []int32, scores []float32, metric distance.Metric) error {
	members := groupByLabel(labels, k)

	err := pool.ParallelFor(ctx, k, func(_ context.Context, j int) error {
		rows := members[j]
		if len(rows) == 0 {
			return nil
		}
		center := centroids[j*dim : (j+1)*dim]
		clear(center)
		for _, row := range rows {
			vek32.Add_Inplace(center, vectors[int(row)*dim:(int(row)+1)*dim])
		}
		vek32.MulNumber_Inplace(center, 1/float32(len(rows)))
		if metric.NeedsNormalization() {
			distance.NormalizeL2InPlace(center)
		}
		return nil
	})
	if err != nil {
		return err
	}

	reseedEmpty(vectors, centroids, dim, members, labels, scores)
	return nil
}

func groupByLabel(labels []int32, k int) [][]int32 {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	members := make([][]int32, k)
	for j := range members {
		members[j] = make([]int32, 0, counts[j])
	}
	for i, l := range labels {
		members[l] = append(members[l], int32(i))
	}
	return members
}

// reseedEmpty moves the worst-fitting member of the most populous cluster
// into each empty cluster.
func reseedEmpty(vectors, centroids []float32, dim int, members [][]int32, labels []int32, scores []float32) {
	for j := range members {
		if len(members[j]) > 0 {
			continue
		}

		largest := 0
		for c := range members {
			if len(members[c]) > len(members[largest]) {
				largest = c
			}
		}
		if len(members[largest]) < 2 {
			return
		}

		pos := 0
		for p, row := range members[largest] {
			if scores[row] > scores[members[largest][pos]] {
				pos = p
			}
		}
		row := members[largest][pos]

		copy(centroids[j*dim:(j+1)*dim], vectors[int(row)*dim:(int(row)+1)*dim])
		members[largest] = append(members[largest][:pos], members[largest][pos+1:]...)
		members[j] = append(members[j], row)
		labels[row] = int32(j)
		scores[row] = 0
	}
}
