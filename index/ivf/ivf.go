package ivf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/internal/kmeans"
	"github.com/alwayslove2013/knowhere/resource"
)

func init() {
	index.Register(index.TypeIVFFlat, func(v index.Version, env index.Env) (index.Index, error) {
		return New(v, env, false), nil
	}, "IVFFLAT")
	index.Register(index.TypeIVFFlatCC, func(v index.Version, env index.Env) (index.Index, error) {
		return New(v, env, true), nil
	}, "IVFFLATCC")
}

var (
	_ index.Index          = (*IVF)(nil)
	_ index.Incremental    = (*IVF)(nil)
	_ index.BucketReporter = (*IVF)(nil)
)

// IVF is an inverted-file index with exhaustive list scans.
type IVF struct {
	version    index.Version
	concurrent bool
	rc         *resource.Controller
	logger     *slog.Logger

	// Set by Build or Deserialize, immutable afterwards.
	built     atomic.Bool
	dim       int
	metric    distance.Metric
	score     distance.Func
	nlist     int
	ssize     int
	centroids []float32

	lists   []*invertedList
	loc     *locator
	count   atomic.Int64
	visits  []atomic.Int64
	addMu   sync.Mutex
	memHeld int64
}

// New creates an empty IVF index. concurrent selects IVF_FLAT_CC behavior.
func New(version index.Version, env index.Env, concurrent bool) *IVF {
	env = env.WithDefaults()
	return &IVF{
		version:    version,
		concurrent: concurrent,
		rc:         env.Resources,
		logger:     env.Logger,
	}
}

// Type returns IVF_FLAT or IVF_FLAT_CC.
func (x *IVF) Type() string {
	if x.concurrent {
		return index.TypeIVFFlatCC
	}
	return index.TypeIVFFlat
}

func (x *IVF) Version() index.Version  { return x.version }
func (x *IVF) IsBuilt() bool           { return x.built.Load() }
func (x *IVF) Count() int64            { return x.count.Load() }
func (x *IVF) NList() int              { return x.nlist }
func (x *IVF) Metric() distance.Metric { return x.metric }

func (x *IVF) Dim() int {
	if !x.IsBuilt() {
		return 0
	}
	return x.dim
}

// Size returns the bytes held by centroids, vectors and ids.
func (x *IVF) Size() int64 {
	return int64(len(x.centroids))*4 + x.Count()*int64(x.dim*4+8)
}

// Build trains the centroids on ds and adds every row.
func (x *IVF) Build(ctx context.Context, ds *index.Dataset, cfg index.Config) error {
	if x.IsBuilt() {
		return index.ErrAlreadyBuilt
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CheckDataset(ds, 0); err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	score, err := distance.Scorer(cfg.Metric)
	if err != nil {
		return err
	}
	if ds.Rows() < cfg.NList {
		return fmt.Errorf("%w: %d rows, nlist=%d", index.ErrInsufficientTrainingData, ds.Rows(), cfg.NList)
	}

	data := prepare(ds.Tensor(), ds.Dim(), cfg.Metric)

	seeding := kmeans.InitRandom
	if cfg.KMeansInit == index.KMeansInitPlusPlus {
		seeding = kmeans.InitPlusPlus
	}
	pool := x.rc.BuildPool()
	trained, err := kmeans.Train(ctx, pool, data, ds.Dim(), kmeans.Config{
		K:       cfg.NList,
		MaxIter: cfg.MaxIterations,
		Seed:    cfg.Seed,
		Metric:  cfg.Metric,
		Init:    seeding,
	})
	if err != nil {
		if errors.Is(err, kmeans.ErrInsufficientData) {
			return fmt.Errorf("%w: %w", index.ErrInsufficientTrainingData, err)
		}
		return err
	}
	x.logger.DebugContext(ctx, "kmeans trained",
		"nlist", cfg.NList,
		"iterations", trained.Iterations,
		"converged", trained.Converged,
		"inertia", trained.Inertia,
	)

	x.dim = ds.Dim()
	x.metric = cfg.Metric
	x.score = score
	x.nlist = cfg.NList
	x.ssize = cfg.SSize
	x.centroids = trained.Centroids
	x.reset(ds.Rows())

	if err := x.add(ctx, data, ds, cfg, pool); err != nil {
		x.discard()
		return err
	}

	if cfg.RecordBucketStats {
		if err := x.writeBucketStats(ctx, cfg.BucketStatsFile); err != nil {
			x.discard()
			return err
		}
	}
	x.built.Store(true)
	return nil
}

// discard drops the state of a Build that did not complete.
func (x *IVF) discard() {
	x.Release()
	x.centroids = nil
	x.lists = nil
	x.loc = nil
	x.visits = nil
	x.count.Store(0)
}

// Add assigns the rows of ds to the trained centroids. Only IVF_FLAT_CC
// accepts rows after Build; IVF_FLAT returns index.ErrAlreadyBuilt.
func (x *IVF) Add(ctx context.Context, ds *index.Dataset, cfg index.Config) error {
	if !x.IsBuilt() {
		return index.ErrNotBuilt
	}
	if !x.concurrent {
		return index.ErrAlreadyBuilt
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CheckDataset(ds, x.dim); err != nil {
		return err
	}
	if cfg.Metric != x.metric {
		return &index.ConfigError{Key: "metric_type", Reason: fmt.Sprintf("index uses %v, got %v", x.metric, cfg.Metric)}
	}
	cfg = cfg.WithDefaults()

	data := prepare(ds.Tensor(), ds.Dim(), x.metric)
	return x.add(ctx, data, ds, cfg, x.rc.BuildPool())
}

// reset allocates empty lists. Chunks are ssize rows for IVF_FLAT_CC and
// sized from the expected rows per list otherwise.
func (x *IVF) reset(expected int) {
	chunkRows := x.ssize
	if !x.concurrent {
		chunkRows = max(expected/x.nlist, 1)
	}
	x.lists = make([]*invertedList, x.nlist)
	for i := range x.lists {
		x.lists[i] = newInvertedList(x.dim, chunkRows)
	}
	x.loc = newLocator(expected)
	x.visits = make([]atomic.Int64, x.nlist)
	x.count.Store(0)
}

func (x *IVF) add(ctx context.Context, data []float32, ds *index.Dataset, cfg index.Config, pool *resource.Pool) error {
	x.addMu.Lock()
	defer x.addMu.Unlock()

	// Rows without explicit ids continue the numbering of earlier rows.
	idOf := ds.ID
	if ds.IDs() == nil {
		base := x.count.Load()
		idOf = func(i int) int64 { return base + int64(i) }
	}

	if id, dup := x.loc.firstKnown(idOf, ds.Rows()); dup {
		return fmt.Errorf("%w: %d", index.ErrDuplicateID, id)
	}

	bytes := int64(ds.Rows()) * int64(x.dim*4+8)
	if err := x.rc.AcquireMemory(ctx, bytes); err != nil {
		return err
	}

	labels, _, err := kmeans.Assign(ctx, pool, data, x.centroids, x.dim, x.metric)
	if err != nil {
		x.rc.ReleaseMemory(bytes)
		return err
	}

	members := make([][]int32, x.nlist)
	for row, l := range labels {
		members[l] = append(members[l], int32(row))
	}

	err = pool.ParallelFor(ctx, x.nlist, func(ctx context.Context, list int) error {
		rows := members[list]
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, len(rows))
		vecs := make([]float32, 0, len(rows)*x.dim)
		for i, row := range rows {
			ids[i] = idOf(int(row))
			vecs = append(vecs, data[int(row)*x.dim:(int(row)+1)*x.dim]...)
		}
		start := x.lists[list].append(ids, vecs)
		for i, id := range ids {
			x.loc.put(id, location{list: int32(list), pos: int32(start + i)})
		}
		return nil
	})
	if err != nil {
		x.rc.ReleaseMemory(bytes)
		return err
	}

	x.memHeld += bytes
	x.count.Add(int64(ds.Rows()))
	x.logger.DebugContext(ctx, "vectors added",
		"index_type", x.Type(),
		"rows", ds.Rows(),
		"total", x.count.Load(),
	)
	return nil
}

// Release returns the memory accounted to the resource controller.
func (x *IVF) Release() {
	x.addMu.Lock()
	defer x.addMu.Unlock()
	x.rc.ReleaseMemory(x.memHeld)
	x.memHeld = 0
}

// GetVectorByIDs returns the stored vectors for ids. For COSINE the stored
// vectors are normalized.
func (x *IVF) GetVectorByIDs(_ context.Context, ids []int64) (*index.Dataset, error) {
	if !x.IsBuilt() {
		return nil, index.ErrNotBuilt
	}
	if len(ids) == 0 {
		return nil, index.ErrEmptyDataset
	}
	tensor := make([]float32, 0, len(ids)*x.dim)
	for _, id := range ids {
		loc, ok := x.loc.get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d not found", index.ErrInvalidID, id)
		}
		tensor = append(tensor, x.lists[loc.list].at(int(loc.pos))...)
	}
	ds, err := index.NewDataset(len(ids), x.dim, tensor)
	if err != nil {
		return nil, err
	}
	return ds.WithIDs(ids)
}

// prepare returns data normalized for metrics that need it. The input is
// never modified.
func prepare(data []float32, dim int, m distance.Metric) []float32 {
	if !m.NeedsNormalization() {
		return data
	}
	out := make([]float32, len(data))
	copy(out, data)
	for i := 0; i < len(out); i += dim {
		distance.NormalizeL2InPlace(out[i : i+dim])
	}
	return out
}
