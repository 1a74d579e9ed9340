package searcher

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("MinHeap", func(t *testing.T) {
		pq := NewPriorityQueue(false)

		pq.PushItem(PriorityQueueItem{ID: 1, Distance: 10})
		pq.PushItem(PriorityQueueItem{ID: 2, Distance: 5})
		pq.PushItem(PriorityQueueItem{ID: 3, Distance: 20})
		require.Equal(t, 3, pq.Len())

		top, ok := pq.TopItem()
		require.True(t, ok)
		assert.Equal(t, float32(5), top.Distance)

		for _, want := range []float32{5, 10, 20} {
			item, ok := pq.PopItem()
			require.True(t, ok)
			assert.Equal(t, want, item.Distance)
		}

		_, ok = pq.PopItem()
		assert.False(t, ok)
	})

	t.Run("MaxHeap", func(t *testing.T) {
		pq := NewPriorityQueue(true)

		pq.PushItem(PriorityQueueItem{ID: 1, Distance: 10})
		pq.PushItem(PriorityQueueItem{ID: 2, Distance: 5})
		pq.PushItem(PriorityQueueItem{ID: 3, Distance: 20})

		top, ok := pq.TopItem()
		require.True(t, ok)
		assert.Equal(t, float32(20), top.Distance)
	})

	t.Run("TieBreakByID", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		for _, id := range []int64{9, 3, 7, 1} {
			pq.PushItemBounded(PriorityQueueItem{ID: id, Distance: 1}, 2)
		}

		got := pq.Drain()
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(3), got[1].ID)
	})
}

func TestPushItemBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	items := make([]PriorityQueueItem, 500)
	for i := range items {
		items[i] = PriorityQueueItem{ID: int64(i), Distance: float32(rng.Intn(50))}
	}

	pq := NewPriorityQueue(true)
	for _, it := range items {
		pq.PushItemBounded(it, 10)
	}
	assert.False(t, pq.PushItemBounded(PriorityQueueItem{ID: 1000, Distance: 1000}, 10))
	assert.False(t, pq.PushItemBounded(PriorityQueueItem{ID: 1, Distance: 0}, 0))

	got := pq.Drain()
	assert.Equal(t, 0, pq.Len())

	sort.Slice(items, func(i, j int) bool { return Before(items[i], items[j]) })
	assert.Equal(t, items[:10], got)
}

func TestWouldAccept(t *testing.T) {
	pq := NewPriorityQueue(true)
	assert.True(t, pq.WouldAccept(100, 1))

	pq.PushItemBounded(PriorityQueueItem{ID: 1, Distance: 5}, 1)
	assert.True(t, pq.WouldAccept(5, 1))
	assert.True(t, pq.WouldAccept(4, 1))
	assert.False(t, pq.WouldAccept(6, 1))
}

func TestSearcherPool(t *testing.T) {
	s := Get()
	s.Results.PushItem(PriorityQueueItem{ID: 1})
	buf := s.QueryBuffer(8)
	assert.Len(t, buf, 8)
	Put(s)

	s = Get()
	assert.Equal(t, 0, s.Results.Len())
	assert.Equal(t, 0, s.Buckets.Len())
	Put(s)
	Put(nil)
}
