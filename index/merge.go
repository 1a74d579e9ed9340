package index

import (
	"container/heap"
	"slices"
)

// Less orders results by distance, then id.
func Less(a, b SearchResult) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// SortResults sorts results in place by (Distance, ID).
func SortResults(results []SearchResult) {
	slices.SortFunc(results, func(a, b SearchResult) int {
		if Less(a, b) {
			return -1
		}
		if Less(b, a) {
			return 1
		}
		return 0
	})
}

// MergeNSearchResults merges multiple sorted lists of SearchResult into a single sorted list of size k.
// All input lists must be sorted by (Distance, ID). The output does not
// depend on the order of the lists.
func MergeNSearchResults(k int, lists ...[]SearchResult) []SearchResult {
	res := make([]SearchResult, 0, k)

	active := make([][]SearchResult, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			active = append(active, l)
		}
	}

	switch len(active) {
	case 0:
		return res
	case 1:
		l := active[0]
		if len(l) > k {
			l = l[:k]
		}
		return append(res, l...)
	}

	h := make(mergeHeap, 0, len(active))
	for i, list := range active {
		h = append(h, mergeItem{res: list[0], listIdx: i})
	}
	heap.Init(&h)

	for h.Len() > 0 && len(res) < k {
		item := heap.Pop(&h).(mergeItem)
		res = append(res, item.res)

		if next := item.elemIdx + 1; next < len(active[item.listIdx]) {
			heap.Push(&h, mergeItem{
				res:     active[item.listIdx][next],
				listIdx: item.listIdx,
				elemIdx: next,
			})
		}
	}

	return res
}

type mergeItem struct {
	res     SearchResult
	listIdx int
	elemIdx int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int           { return len(h) }
func (h mergeHeap) Less(i, j int) bool { return Less(h[i].res, h[j].res) }
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) {
	*h = append(*h, x.(mergeItem))
}

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
