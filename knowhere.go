package knowhere

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/resource"

	// Register the built-in families.
	_ "github.com/alwayslove2013/knowhere/index/flat"
	_ "github.com/alwayslove2013/knowhere/index/ivf"
)

// Re-exported names so callers rarely import the index package.
type (
	Dataset     = index.Dataset
	Config      = index.Config
	Result      = index.Result
	RangeResult = index.RangeResult
	BinarySet   = index.BinarySet
	Version     = index.Version
	BucketStat  = index.BucketStat
)

// Family names.
const (
	TypeFlat      = index.TypeFlat
	TypeIVFFlat   = index.TypeIVFFlat
	TypeIVFFlatCC = index.TypeIVFFlatCC
)

var defaultController = resource.Default()

// SetBuildThreadPool resizes the build pool of the default controller.
// Calls already running keep the pool they started with.
func SetBuildThreadPool(n int) { defaultController.SetBuildThreadPool(n) }

// SetSearchThreadPool resizes the search pool of the default controller.
func SetSearchThreadPool(n int) { defaultController.SetSearchThreadPool(n) }

// GetCurrentVersion returns the layout version written by this build.
func GetCurrentVersion() Version { return index.CurrentVersion }

// IndexTypes returns the registered family names.
func IndexTypes() []string { return index.Types() }

type releaser interface {
	Release()
}

// Index is the lifecycle manager around one index family.
//
// Build and Deserialize take exclusive access. Search, RangeSearch,
// Serialize and GetVectorByIDs run concurrently with each other, and Add
// runs concurrently with them on families that grow after Build.
type Index struct {
	mu     sync.RWMutex
	impl   index.Index
	opts   options
	logger *Logger
	closed bool
}

// CreateIndex creates an empty index of the named family at version.
func CreateIndex(indexType string, version Version, optFns ...Option) (*Index, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	impl, err := index.New(indexType, version, index.Env{
		Resources: opts.resources,
		Logger:    opts.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Index{
		impl:   impl,
		opts:   opts,
		logger: opts.logger.WithIndexType(impl.Type()),
	}, nil
}

// Type returns the canonical family name.
func (i *Index) Type() string { return i.impl.Type() }

// Version returns the version the index was created with.
func (i *Index) Version() Version { return i.impl.Version() }

// Dim returns the vector dimension, or 0 before Build.
func (i *Index) Dim() int { return i.impl.Dim() }

// Metric returns the metric the index was built or loaded with.
func (i *Index) Metric() distance.Metric { return i.impl.Metric() }

// Count returns the number of stored vectors.
func (i *Index) Count() int64 { return i.impl.Count() }

// Size returns the approximate memory footprint in bytes.
func (i *Index) Size() int64 { return i.impl.Size() }

// IsBuilt reports whether the index can be searched.
func (i *Index) IsBuilt() bool { return i.impl.IsBuilt() }

// HasRawData reports whether GetVectorByIDs can return stored vectors.
// Every built-in family keeps raw float32 data.
func (i *Index) HasRawData() bool { return true }

// Build trains the index on ds. On a built index, families that grow after
// Build append ds instead; others return ErrAlreadyBuilt.
func (i *Index) Build(ctx context.Context, ds *Dataset, cfg Config) error {
	if i.IsBuilt() {
		if _, ok := i.impl.(index.Incremental); ok {
			return i.Add(ctx, ds, cfg)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	err := i.build(ctx, ds, cfg)
	i.opts.metricsCollector.RecordBuild(rows(ds), time.Since(start), err)
	i.logger.LogBuild(ctx, rows(ds), i.impl.Dim(), err)
	return err
}

func (i *Index) build(ctx context.Context, ds *Dataset, cfg Config) error {
	if i.closed {
		return ErrClosed
	}
	if err := i.checkType(cfg); err != nil {
		return err
	}
	return i.impl.Build(ctx, ds, cfg)
}

// Add appends ds to a built index without retraining.
func (i *Index) Add(ctx context.Context, ds *Dataset, cfg Config) error {
	inc, ok := i.impl.(index.Incremental)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIncrementalUnsupported, i.Type())
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	start := time.Now()
	var err error
	if i.closed {
		err = ErrClosed
	} else if err = i.checkType(cfg); err == nil {
		err = inc.Add(ctx, ds, cfg)
	}
	i.opts.metricsCollector.RecordBuild(rows(ds), time.Since(start), err)
	i.logger.LogBuild(ctx, rows(ds), i.impl.Dim(), err)
	return err
}

// Search returns the cfg.K nearest neighbors of each query. Ids set in
// filter are excluded; filter may be nil.
func (i *Index) Search(ctx context.Context, queries *Dataset, cfg Config, filter *bitset.Bitset) (*Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	start := time.Now()
	var (
		res *Result
		err error
	)
	if i.closed {
		err = ErrClosed
	} else if err = i.checkType(cfg); err == nil {
		res, err = i.impl.Search(ctx, queries, cfg, filter)
	}
	k := cfg.WithDefaults().K
	i.opts.metricsCollector.RecordSearch(rows(queries), k, time.Since(start), err)
	i.logger.LogSearch(ctx, rows(queries), k, err)
	return res, err
}

// RangeSearch returns every neighbor within cfg.Radius of each query.
func (i *Index) RangeSearch(ctx context.Context, queries *Dataset, cfg Config, filter *bitset.Bitset) (*RangeResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	start := time.Now()
	var (
		res *RangeResult
		err error
	)
	if i.closed {
		err = ErrClosed
	} else if err = i.checkType(cfg); err == nil {
		res, err = i.impl.RangeSearch(ctx, queries, cfg, filter)
	}
	i.opts.metricsCollector.RecordSearch(rows(queries), 0, time.Since(start), err)
	i.logger.LogSearch(ctx, rows(queries), 0, err)
	return res, err
}

// GetVectorByIDs returns the stored vectors of ids in the order given.
func (i *Index) GetVectorByIDs(ctx context.Context, ids []int64) (*Dataset, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, ErrClosed
	}
	return i.impl.GetVectorByIDs(ctx, ids)
}

// BucketStats returns per-bucket population and visit counts.
func (i *Index) BucketStats() ([]BucketStat, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	br, ok := i.impl.(index.BucketReporter)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no buckets", ErrDiagnosticsUnavailable, i.Type())
	}
	if !i.impl.IsBuilt() {
		return nil, ErrNotBuilt
	}
	return br.BucketStats(), nil
}

// Serialize encodes the index into a BinarySet.
func (i *Index) Serialize(ctx context.Context) (*BinarySet, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.serialize(ctx)
}

func (i *Index) serialize(ctx context.Context) (*BinarySet, error) {
	start := time.Now()
	var (
		bs  *BinarySet
		err error
	)
	if i.closed {
		err = ErrClosed
	} else {
		bs, err = i.impl.Serialize(ctx)
	}

	var size int64
	var sections int
	if bs != nil {
		size, sections = bs.Size(), bs.Len()
	}
	i.opts.metricsCollector.RecordSerialize(size, time.Since(start), err)
	i.logger.LogSerialize(ctx, sections, size, err)
	return bs, err
}

// Deserialize replaces the index contents with bs. The stored version must
// be within [index.MinimalVersion, Version()].
func (i *Index) Deserialize(ctx context.Context, bs *BinarySet) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deserialize(ctx, bs)
}

func (i *Index) deserialize(ctx context.Context, bs *BinarySet) error {
	start := time.Now()
	var err error
	if i.closed {
		err = ErrClosed
	} else {
		if r, ok := i.impl.(releaser); ok && i.impl.IsBuilt() {
			r.Release()
		}
		err = i.impl.Deserialize(ctx, bs)
	}
	i.opts.metricsCollector.RecordDeserialize(time.Since(start), err)
	i.logger.LogDeserialize(ctx, i.impl.Count(), err)
	return err
}

// Close releases resources held by the index. Further calls fail with ErrClosed.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	if r, ok := i.impl.(releaser); ok {
		r.Release()
	}
	return nil
}

func (i *Index) String() string {
	return fmt.Sprintf("Index{type=%s version=%d built=%t count=%d}", i.Type(), i.Version(), i.IsBuilt(), i.Count())
}

// checkType rejects a config naming a different family.
func (i *Index) checkType(cfg Config) error {
	if cfg.IndexType == "" {
		return nil
	}
	name, ok := index.Canonical(cfg.IndexType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIndexType, cfg.IndexType)
	}
	if name != i.impl.Type() {
		return &index.ConfigError{Key: "index_type", Reason: fmt.Sprintf("%s does not match index %s", name, i.impl.Type())}
	}
	return nil
}

func rows(ds *Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Rows()
}
