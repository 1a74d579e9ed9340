package searcher

import "sync"

// Searcher is a reusable execution context for one query.
//
// Searcher is NOT thread-safe. It is intended to be owned by a single goroutine
// during a search operation.
type Searcher struct {
	// Results is a max-heap keeping the best k candidates seen so far.
	Results *PriorityQueue

	// Buckets is a max-heap keeping the best nprobe centroids.
	Buckets *PriorityQueue

	// Query is scratch space for a normalized copy of the query vector.
	Query []float32
}

var pool = sync.Pool{
	New: func() any {
		return &Searcher{
			Results: NewPriorityQueue(true),
			Buckets: NewPriorityQueue(true),
		}
	},
}

// Get returns a reset Searcher from the pool.
func Get() *Searcher {
	s := pool.Get().(*Searcher)
	s.Results.Reset()
	s.Buckets.Reset()
	s.Query = s.Query[:0]
	return s
}

// Put returns s to the pool.
func Put(s *Searcher) {
	if s == nil {
		return
	}
	pool.Put(s)
}

// QueryBuffer returns a scratch slice of length dim.
func (s *Searcher) QueryBuffer(dim int) []float32 {
	if cap(s.Query) < dim {
		s.Query = make([]float32, dim)
	}
	s.Query = s.Query[:dim]
	return s.Query
}
