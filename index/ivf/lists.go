package ivf

import "sync"

// chunk is a fixed-capacity block of a list. Its backing arrays never move,
// so readers holding a snapshot may scan it while a writer appends past the
// snapshot length.
type chunk struct {
	ids  []int64
	vecs []float32
}

// invertedList holds the members of one bucket in insertion order.
type invertedList struct {
	mu        sync.RWMutex
	dim       int
	chunkRows int
	chunks    []chunk
	size      int
}

func newInvertedList(dim, chunkRows int) *invertedList {
	return &invertedList{dim: dim, chunkRows: max(chunkRows, 1)}
}

// append adds rows to the list and returns the position of the first one.
// vecs holds len(ids)*dim values.
func (l *invertedList) append(ids []int64, vecs []float32) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.size
	for len(ids) > 0 {
		if len(l.chunks) == 0 || len(l.chunks[len(l.chunks)-1].ids) == l.chunkRows {
			l.chunks = append(l.chunks, chunk{
				ids:  make([]int64, 0, l.chunkRows),
				vecs: make([]float32, 0, l.chunkRows*l.dim),
			})
		}
		last := &l.chunks[len(l.chunks)-1]
		n := min(l.chunkRows-len(last.ids), len(ids))
		last.ids = append(last.ids, ids[:n]...)
		last.vecs = append(last.vecs, vecs[:n*l.dim]...)
		l.size += n
		ids = ids[n:]
		vecs = vecs[n*l.dim:]
	}
	return start
}

// snapshot returns the chunk headers visible now.
func (l *invertedList) snapshot() []chunk {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]chunk, len(l.chunks))
	copy(out, l.chunks)
	return out
}

// len returns the number of members.
func (l *invertedList) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// at returns the vector stored at position pos.
func (l *invertedList) at(pos int) []float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := l.chunks[pos/l.chunkRows]
	off := pos % l.chunkRows
	return c.vecs[off*l.dim : (off+1)*l.dim]
}

// flatten returns a copy of every id and vector in insertion order.
func (l *invertedList) flatten() ([]int64, []float32) {
	chunks := l.snapshot()
	var n int
	for _, c := range chunks {
		n += len(c.ids)
	}
	ids := make([]int64, 0, n)
	vecs := make([]float32, 0, n*l.dim)
	for _, c := range chunks {
		ids = append(ids, c.ids...)
		vecs = append(vecs, c.vecs...)
	}
	return ids, vecs
}

// location is the position of a vector inside the inverted lists.
type location struct {
	list int32
	pos  int32
}

// locator maps ids to their location and rejects duplicates.
type locator struct {
	mu   sync.RWMutex
	locs map[int64]location
}

func newLocator(n int) *locator {
	return &locator{locs: make(map[int64]location, n)}
}

func (l *locator) get(id int64) (location, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loc, ok := l.locs[id]
	return loc, ok
}

// firstKnown returns the first id of ids already present.
func (l *locator) firstKnown(ids func(i int) int64, n int) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := 0; i < n; i++ {
		if _, ok := l.locs[ids(i)]; ok {
			return ids(i), true
		}
	}
	return 0, false
}

func (l *locator) put(id int64, loc location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locs[id] = loc
}

func (l *locator) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.locs)
}
