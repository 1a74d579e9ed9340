package ivf

import (
	"context"
	"fmt"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/internal/searcher"
	"github.com/alwayslove2013/knowhere/resource"
)

func (x *IVF) checkSearch(queries *index.Dataset, cfg index.Config) (index.Config, error) {
	if !x.IsBuilt() {
		return cfg, index.ErrNotBuilt
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.CheckDataset(queries, x.dim); err != nil {
		return cfg, err
	}
	if cfg.Metric != x.metric {
		return cfg, &index.ConfigError{Key: "metric_type", Reason: fmt.Sprintf("index uses %v, got %v", x.metric, cfg.Metric)}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.CheckResultSize(queries.Rows()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Search returns the k nearest neighbors of every query among the vectors of
// the nprobe closest buckets.
func (x *IVF) Search(ctx context.Context, queries *index.Dataset, cfg index.Config, filter *bitset.Bitset) (*index.Result, error) {
	cfg, err := x.checkSearch(queries, cfg)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		filter = nil
	}

	nprobe := x.clampNProbe(ctx, cfg.NProbe)
	k := cfg.K
	nq := queries.Rows()
	data := prepare(queries.Tensor(), x.dim, x.metric)

	res := index.NewResult(nq, k)
	if cfg.ReturnVisitedBuckets {
		res.Visited = &index.VisitedBuckets{
			NProbe:    nprobe,
			IDs:       make([]int64, nq*nprobe),
			Distances: make([]float32, nq*nprobe),
		}
	}

	pool := x.rc.SearchPool()
	// Small batches cannot keep the pool busy with one task per query, so
	// the probed buckets of each query are split across workers as well.
	split := nq < pool.Size() && nprobe > 1

	err = pool.ParallelFor(ctx, nq, func(ctx context.Context, q int) error {
		query := data[q*x.dim : (q+1)*x.dim]

		s := searcher.Get()
		defer searcher.Put(s)

		buckets := x.probe(query, nprobe, s.Buckets)
		if res.Visited != nil {
			base := q * nprobe
			for i, b := range buckets {
				res.Visited.IDs[base+i] = b.ID
				res.Visited.Distances[base+i] = x.metric.Report(b.Distance)
			}
		}
		if cfg.RecordBucketStats {
			for _, b := range buckets {
				x.visits[b.ID].Add(1)
			}
		}

		var hits []index.SearchResult
		if split {
			var serr error
			hits, serr = x.scanSplit(ctx, pool, query, buckets, k, filter)
			if serr != nil {
				return serr
			}
		} else {
			for _, b := range buckets {
				x.scanList(query, int(b.ID), k, filter, s.Results)
			}
			hits = x.report(s.Results.Drain())
		}
		res.Set(q, hits)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.RecordBucketStats {
		if err := x.writeBucketStats(ctx, cfg.BucketStatsFile); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// scanSplit scans buckets round-robin across at most pool.Size() local heaps
// and merges them.
func (x *IVF) scanSplit(ctx context.Context, pool *resource.Pool, query []float32, buckets []searcher.PriorityQueueItem, k int, filter *bitset.Bitset) ([]index.SearchResult, error) {
	parts := min(pool.Size(), len(buckets))
	partial := make([][]index.SearchResult, parts)

	err := pool.ParallelFor(ctx, parts, func(_ context.Context, p int) error {
		pq := searcher.NewPriorityQueue(true)
		for i := p; i < len(buckets); i += parts {
			x.scanList(query, int(buckets[i].ID), k, filter, pq)
		}
		items := pq.Drain()
		out := make([]index.SearchResult, len(items))
		for i, it := range items {
			out[i] = index.SearchResult{ID: it.ID, Distance: it.Distance}
		}
		partial[p] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := index.MergeNSearchResults(k, partial...)
	for i := range merged {
		merged[i].Distance = x.metric.Report(merged[i].Distance)
	}
	return merged, nil
}

// scanList pushes every non-excluded member of list into the bounded heap pq.
func (x *IVF) scanList(query []float32, list, k int, filter *bitset.Bitset, pq *searcher.PriorityQueue) {
	for _, c := range x.lists[list].snapshot() {
		for i, id := range c.ids {
			if filter != nil && filter.Test(id) {
				continue
			}
			s := x.score(query, c.vecs[i*x.dim:(i+1)*x.dim])
			if pq.WouldAccept(s, k) {
				pq.PushItemBounded(searcher.PriorityQueueItem{ID: id, Distance: s}, k)
			}
		}
	}
}

// RangeSearch returns, per query, every vector in the probed buckets whose
// distance lies within radius and outside range_filter, closest first.
func (x *IVF) RangeSearch(ctx context.Context, queries *index.Dataset, cfg index.Config, filter *bitset.Bitset) (*index.RangeResult, error) {
	cfg, err := x.checkSearch(queries, cfg)
	if err != nil {
		return nil, err
	}
	lo, hi, err := cfg.RangeBounds(x.metric)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		filter = nil
	}

	nprobe := x.clampNProbe(ctx, cfg.NProbe)
	nq := queries.Rows()
	data := prepare(queries.Tensor(), x.dim, x.metric)
	perQuery := make([][]index.SearchResult, nq)

	pool := x.rc.SearchPool()
	err = pool.ParallelFor(ctx, nq, func(ctx context.Context, q int) error {
		query := data[q*x.dim : (q+1)*x.dim]

		s := searcher.Get()
		defer searcher.Put(s)

		var hits []index.SearchResult
		for _, b := range x.probe(query, nprobe, s.Buckets) {
			for _, c := range x.lists[b.ID].snapshot() {
				for i, id := range c.ids {
					if filter != nil && filter.Test(id) {
						continue
					}
					sc := x.score(query, c.vecs[i*x.dim:(i+1)*x.dim])
					if sc >= lo && sc < hi {
						hits = append(hits, index.SearchResult{ID: id, Distance: sc})
					}
				}
			}
		}
		index.SortResults(hits)
		for i := range hits {
			hits[i].Distance = x.metric.Report(hits[i].Distance)
		}
		perQuery[q] = hits
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return index.NewRangeResult(perQuery), nil
}
