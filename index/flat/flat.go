// Package flat provides the FLAT index: exact search over every stored vector.
package flat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/internal/searcher"
	"github.com/alwayslove2013/knowhere/resource"
)

func init() {
	index.Register(index.TypeFlat, func(v index.Version, env index.Env) (index.Index, error) {
		return New(v, env), nil
	}, "BRUTE_FORCE")
}

var (
	_ index.Index       = (*Flat)(nil)
	_ index.Incremental = (*Flat)(nil)
)

// state is the immutable view searched by readers. Writers publish a new
// state; the backing arrays are only ever appended past len.
type state struct {
	tensor []float32
	ids    []int64
	pos    map[int64]int
}

// Flat stores vectors contiguously and scans all of them per query.
// It uses a copy-on-write state for lock-free concurrent reads.
type Flat struct {
	version index.Version
	rc      *resource.Controller
	logger  *slog.Logger

	state   atomic.Pointer[state]
	writeMu sync.Mutex // serializes writes only

	built   atomic.Bool
	dim     int
	metric  distance.Metric
	score   distance.Func
	memHeld int64
}

// New creates an empty FLAT index.
func New(version index.Version, env index.Env) *Flat {
	env = env.WithDefaults()
	f := &Flat{version: version, rc: env.Resources, logger: env.Logger}
	f.state.Store(&state{pos: map[int64]int{}})
	return f
}

func (*Flat) Type() string              { return index.TypeFlat }
func (f *Flat) Version() index.Version  { return f.version }
func (f *Flat) IsBuilt() bool           { return f.built.Load() }
func (f *Flat) Count() int64            { return int64(len(f.state.Load().ids)) }
func (f *Flat) Metric() distance.Metric { return f.metric }
func (f *Flat) Size() int64             { return f.Count() * int64(f.dim*4+8) }

func (f *Flat) Dim() int {
	if !f.IsBuilt() {
		return 0
	}
	return f.dim
}

// Build stores every row of ds. FLAT needs no training.
func (f *Flat) Build(ctx context.Context, ds *index.Dataset, cfg index.Config) error {
	if f.IsBuilt() {
		return index.ErrAlreadyBuilt
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CheckDataset(ds, 0); err != nil {
		return err
	}
	score, err := distance.Scorer(cfg.Metric)
	if err != nil {
		return err
	}

	f.dim = ds.Dim()
	f.metric = cfg.Metric
	f.score = score
	if err := f.add(ctx, ds); err != nil {
		return err
	}
	f.built.Store(true)
	return nil
}

// Add appends rows after Build. Rows without ids continue the numbering of
// earlier rows.
func (f *Flat) Add(ctx context.Context, ds *index.Dataset, cfg index.Config) error {
	if !f.IsBuilt() {
		return index.ErrNotBuilt
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CheckDataset(ds, f.dim); err != nil {
		return err
	}
	if cfg.Metric != f.metric {
		return &index.ConfigError{Key: "metric_type", Reason: fmt.Sprintf("index uses %v, got %v", f.metric, cfg.Metric)}
	}
	return f.add(ctx, ds)
}

func (f *Flat) add(ctx context.Context, ds *index.Dataset) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.state.Load()
	base := int64(len(old.ids))
	idOf := ds.ID
	if ds.IDs() == nil {
		idOf = func(i int) int64 { return base + int64(i) }
	}
	for i := 0; i < ds.Rows(); i++ {
		if _, dup := old.pos[idOf(i)]; dup {
			return fmt.Errorf("%w: %d", index.ErrDuplicateID, idOf(i))
		}
	}

	bytes := int64(ds.Rows()) * int64(f.dim*4+8)
	if err := f.rc.AcquireMemory(ctx, bytes); err != nil {
		return err
	}

	next := &state{
		tensor: append(old.tensor, ds.Tensor()...),
		ids:    old.ids,
		pos:    make(map[int64]int, len(old.pos)+ds.Rows()),
	}
	for id, p := range old.pos {
		next.pos[id] = p
	}
	for i := 0; i < ds.Rows(); i++ {
		id := idOf(i)
		next.pos[id] = len(next.ids)
		next.ids = append(next.ids, id)
	}
	if f.metric.NeedsNormalization() {
		start := len(old.tensor)
		// append may have shared old's backing array; only the new tail is touched.
		for i := start; i < len(next.tensor); i += f.dim {
			distance.NormalizeL2InPlace(next.tensor[i : i+f.dim])
		}
	}

	f.state.Store(next)
	f.memHeld += bytes
	f.logger.DebugContext(ctx, "vectors added",
		"index_type", index.TypeFlat,
		"rows", ds.Rows(),
		"total", len(next.ids),
	)
	return nil
}

// Release returns the memory accounted to the resource controller.
func (f *Flat) Release() {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.rc.ReleaseMemory(f.memHeld)
	f.memHeld = 0
}

func (f *Flat) checkSearch(queries *index.Dataset, cfg index.Config) (index.Config, error) {
	if !f.IsBuilt() {
		return cfg, index.ErrNotBuilt
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.CheckDataset(queries, f.dim); err != nil {
		return cfg, err
	}
	if cfg.Metric != f.metric {
		return cfg, &index.ConfigError{Key: "metric_type", Reason: fmt.Sprintf("index uses %v, got %v", f.metric, cfg.Metric)}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.CheckResultSize(queries.Rows()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Search returns the exact k nearest neighbors of every query.
func (f *Flat) Search(ctx context.Context, queries *index.Dataset, cfg index.Config, filter *bitset.Bitset) (*index.Result, error) {
	cfg, err := f.checkSearch(queries, cfg)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		filter = nil
	}

	st := f.state.Load()
	k := cfg.K
	res := index.NewResult(queries.Rows(), k)

	err = f.rc.SearchPool().ParallelFor(ctx, queries.Rows(), func(ctx context.Context, q int) error {
		s := searcher.Get()
		defer searcher.Put(s)

		query := f.prepareQuery(s, queries.Row(q))
		pq := s.Results
		for i, id := range st.ids {
			if filter != nil && filter.Test(id) {
				continue
			}
			d := f.score(query, st.tensor[i*f.dim:(i+1)*f.dim])
			if pq.WouldAccept(d, k) {
				pq.PushItemBounded(searcher.PriorityQueueItem{ID: id, Distance: d}, k)
			}
		}

		items := pq.Drain()
		hits := make([]index.SearchResult, len(items))
		for i, it := range items {
			hits[i] = index.SearchResult{ID: it.ID, Distance: f.metric.Report(it.Distance)}
		}
		res.Set(q, hits)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RangeSearch returns every vector within the configured radius of each query.
func (f *Flat) RangeSearch(ctx context.Context, queries *index.Dataset, cfg index.Config, filter *bitset.Bitset) (*index.RangeResult, error) {
	cfg, err := f.checkSearch(queries, cfg)
	if err != nil {
		return nil, err
	}
	lo, hi, err := cfg.RangeBounds(f.metric)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		filter = nil
	}

	st := f.state.Load()
	perQuery := make([][]index.SearchResult, queries.Rows())
	err = f.rc.SearchPool().ParallelFor(ctx, queries.Rows(), func(ctx context.Context, q int) error {
		s := searcher.Get()
		defer searcher.Put(s)

		query := f.prepareQuery(s, queries.Row(q))
		var hits []index.SearchResult
		for i, id := range st.ids {
			if filter != nil && filter.Test(id) {
				continue
			}
			d := f.score(query, st.tensor[i*f.dim:(i+1)*f.dim])
			if d >= lo && d < hi {
				hits = append(hits, index.SearchResult{ID: id, Distance: d})
			}
		}
		index.SortResults(hits)
		for i := range hits {
			hits[i].Distance = f.metric.Report(hits[i].Distance)
		}
		perQuery[q] = hits
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return index.NewRangeResult(perQuery), nil
}

// prepareQuery returns the query in the stored vector space, using the
// searcher's scratch buffer for normalization.
func (f *Flat) prepareQuery(s *searcher.Searcher, q []float32) []float32 {
	if !f.metric.NeedsNormalization() {
		return q
	}
	buf := s.QueryBuffer(f.dim)
	copy(buf, q)
	distance.NormalizeL2InPlace(buf)
	return buf
}

// GetVectorByIDs returns the stored vectors for ids. For COSINE the stored
// vectors are normalized.
func (f *Flat) GetVectorByIDs(_ context.Context, ids []int64) (*index.Dataset, error) {
	if !f.IsBuilt() {
		return nil, index.ErrNotBuilt
	}
	if len(ids) == 0 {
		return nil, index.ErrEmptyDataset
	}
	st := f.state.Load()
	tensor := make([]float32, 0, len(ids)*f.dim)
	for _, id := range ids {
		p, ok := st.pos[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d not found", index.ErrInvalidID, id)
		}
		tensor = append(tensor, st.tensor[p*f.dim:(p+1)*f.dim]...)
	}
	ds, err := index.NewDataset(len(ids), f.dim, tensor)
	if err != nil {
		return nil, err
	}
	return ds.WithIDs(ids)
}

func (f *Flat) String() string {
	return fmt.Sprintf("FLAT{dim=%d count=%d metric=%v}", f.dim, f.Count(), f.metric)
}
