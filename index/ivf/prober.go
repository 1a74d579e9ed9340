package ivf

import (
	"context"

	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/internal/searcher"
)

// clampNProbe bounds nprobe to [1, nlist].
func (x *IVF) clampNProbe(ctx context.Context, nprobe int) int {
	if nprobe <= 0 {
		nprobe = index.DefaultNProbe
	}
	if nprobe > x.nlist {
		x.logger.DebugContext(ctx, "nprobe clamped to nlist",
			"nprobe", nprobe,
			"nlist", x.nlist,
		)
		nprobe = x.nlist
	}
	return nprobe
}

// probe returns the nprobe closest centroids to query ordered by
// (score, centroid id). pq is used as scratch space.
func (x *IVF) probe(query []float32, nprobe int, pq *searcher.PriorityQueue) []searcher.PriorityQueueItem {
	pq.Reset()
	for j := 0; j < x.nlist; j++ {
		s := x.score(query, x.centroids[j*x.dim:(j+1)*x.dim])
		pq.PushItemBounded(searcher.PriorityQueueItem{ID: int64(j), Distance: s}, nprobe)
	}
	return pq.Drain()
}

// SelectBuckets returns the min(nprobe, nlist) buckets closest to query with
// their reported distances, closest first. Equal distances order by bucket id.
func (x *IVF) SelectBuckets(ctx context.Context, query []float32, nprobe int) ([]index.SearchResult, error) {
	if !x.IsBuilt() {
		return nil, index.ErrNotBuilt
	}
	if err := index.CheckDim(x.dim, len(query)); err != nil {
		return nil, err
	}
	q := prepare(query, x.dim, x.metric)

	s := searcher.Get()
	defer searcher.Put(s)

	buckets := x.probe(q, x.clampNProbe(ctx, nprobe), s.Buckets)
	return x.report(buckets), nil
}

// report converts scored items into results with caller-facing distances.
func (x *IVF) report(items []searcher.PriorityQueueItem) []index.SearchResult {
	out := make([]index.SearchResult, len(items))
	for i, it := range items {
		out[i] = index.SearchResult{ID: it.ID, Distance: x.metric.Report(it.Distance)}
	}
	return out
}
