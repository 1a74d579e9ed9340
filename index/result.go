package index

import "fmt"

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the identifier of the search result.
	ID int64

	// Distance is the distance between the query vector and the result vector.
	Distance float32
}

// VisitedBuckets records, per query, the buckets a search probed in the
// order they were selected.
type VisitedBuckets struct {
	// NProbe is the number of buckets recorded per query.
	NProbe int
	// IDs holds nq*NProbe centroid ids.
	IDs []int64
	// Distances holds the matching query-to-centroid distances.
	Distances []float32
}

// Query returns the bucket ids and distances probed for query q.
func (v *VisitedBuckets) Query(q int) ([]int64, []float32) {
	lo, hi := q*v.NProbe, (q+1)*v.NProbe
	return v.IDs[lo:hi], v.Distances[lo:hi]
}

// Result holds the k nearest neighbors of every query.
//
// IDs and Distances are nq*k arrays. Queries with fewer than k matches are
// padded with id -1.
type Result struct {
	NQ        int
	K         int
	IDs       []int64
	Distances []float32

	// Visited is set only when return_visited_buckets was requested.
	Visited *VisitedBuckets
}

// NewResult allocates a padded result for nq queries.
func NewResult(nq, k int) *Result {
	r := &Result{
		NQ:        nq,
		K:         k,
		IDs:       make([]int64, nq*k),
		Distances: make([]float32, nq*k),
	}
	for i := range r.IDs {
		r.IDs[i] = -1
	}
	return r
}

// Set stores the hits of query q, which must be at most K.
func (r *Result) Set(q int, hits []SearchResult) {
	base := q * r.K
	for i, h := range hits {
		r.IDs[base+i] = h.ID
		r.Distances[base+i] = h.Distance
	}
}

// Neighbors returns the hits of query q without padding.
func (r *Result) Neighbors(q int) []SearchResult {
	base := q * r.K
	out := make([]SearchResult, 0, r.K)
	for i := 0; i < r.K; i++ {
		if r.IDs[base+i] < 0 {
			break
		}
		out = append(out, SearchResult{ID: r.IDs[base+i], Distance: r.Distances[base+i]})
	}
	return out
}

// RangeResult holds the variable-length hits of a range search. The hits of
// query q are at offsets [Lims[q], Lims[q+1]).
type RangeResult struct {
	NQ        int
	Lims      []int
	IDs       []int64
	Distances []float32
}

// NewRangeResult concatenates per-query hits.
func NewRangeResult(perQuery [][]SearchResult) *RangeResult {
	r := &RangeResult{NQ: len(perQuery), Lims: make([]int, len(perQuery)+1)}
	for q, hits := range perQuery {
		r.Lims[q+1] = r.Lims[q] + len(hits)
	}
	r.IDs = make([]int64, 0, r.Lims[len(perQuery)])
	r.Distances = make([]float32, 0, r.Lims[len(perQuery)])
	for _, hits := range perQuery {
		for _, h := range hits {
			r.IDs = append(r.IDs, h.ID)
			r.Distances = append(r.Distances, h.Distance)
		}
	}
	return r
}

// Neighbors returns the hits of query q.
func (r *RangeResult) Neighbors(q int) []SearchResult {
	out := make([]SearchResult, 0, r.Lims[q+1]-r.Lims[q])
	for i := r.Lims[q]; i < r.Lims[q+1]; i++ {
		out = append(out, SearchResult{ID: r.IDs[i], Distance: r.Distances[i]})
	}
	return out
}

func (r *Result) String() string {
	return fmt.Sprintf("Result{nq=%d k=%d visited=%t}", r.NQ, r.K, r.Visited != nil)
}
