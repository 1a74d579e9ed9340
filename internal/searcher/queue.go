package searcher

// PriorityQueueItem represents an item in the priority queue.
type PriorityQueueItem struct {
	ID       int64   // ID is the vector or bucket id.
	Distance float32 // Distance is the lower-is-closer score of the item.
}

// Before reports whether a sorts before b under the (Distance, ID) order.
func Before(a, b PriorityQueueItem) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// PriorityQueue implements a binary heap holding PriorityQueueItems.
type PriorityQueue struct {
	isMaxHeap bool
	items     []PriorityQueueItem
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]PriorityQueueItem, 0, 16),
	}
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the heap.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (PriorityQueueItem, bool) {
	if len(pq.items) == 0 {
		return PriorityQueueItem{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item PriorityQueueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushItemBounded inserts an item into a max-heap holding at most capacity
// items. When full, the item replaces the top only if it sorts before it.
// It reports whether the item was kept.
func (pq *PriorityQueue) PushItemBounded(item PriorityQueueItem, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	if len(pq.items) < capacity {
		pq.PushItem(item)
		return true
	}

	if !Before(item, pq.items[0]) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// WouldAccept reports whether PushItemBounded would keep an item with the
// given distance, ignoring ties. Scans use it to skip work early.
func (pq *PriorityQueue) WouldAccept(distance float32, capacity int) bool {
	return len(pq.items) < capacity || distance <= pq.items[0].Distance
}

// PopItem removes and returns the top element from the heap.
func (pq *PriorityQueue) PopItem() (PriorityQueueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return PriorityQueueItem{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// Drain empties the heap and returns its items in ascending (Distance, ID) order.
func (pq *PriorityQueue) Drain() []PriorityQueueItem {
	out := make([]PriorityQueueItem, len(pq.items))
	if pq.isMaxHeap {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = pq.PopItem()
		}
	} else {
		for i := range out {
			out[i], _ = pq.PopItem()
		}
	}
	return out
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return Before(pq.items[j], pq.items[i])
	}
	return Before(pq.items[i], pq.items[j])
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		best := left
		if right := left + 1; right < n && pq.less(right, left) {
			best = right
		}
		if !pq.less(best, i) {
			break
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
