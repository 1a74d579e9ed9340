package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeNSearchResults(t *testing.T) {
	a := []SearchResult{{ID: 1, Distance: 0.1}, {ID: 4, Distance: 0.4}}
	b := []SearchResult{{ID: 2, Distance: 0.2}, {ID: 5, Distance: 0.5}}
	c := []SearchResult{{ID: 3, Distance: 0.3}}

	tests := []struct {
		name  string
		k     int
		lists [][]SearchResult
		want  []int64
	}{
		{"Empty", 3, nil, []int64{}},
		{"Single", 1, [][]SearchResult{a}, []int64{1}},
		{"Three", 4, [][]SearchResult{a, b, c}, []int64{1, 2, 3, 4}},
		{"Reordered", 4, [][]SearchResult{c, nil, b, a}, []int64{1, 2, 3, 4}},
		{"KLargerThanInput", 10, [][]SearchResult{a, c}, []int64{1, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeNSearchResults(tt.k, tt.lists...)
			ids := make([]int64, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMergeNSearchResults_TieBreak(t *testing.T) {
	a := []SearchResult{{ID: 9, Distance: 1}}
	b := []SearchResult{{ID: 2, Distance: 1}}
	c := []SearchResult{{ID: 5, Distance: 1}}

	got := MergeNSearchResults(2, a, b, c)
	assert.Equal(t, []SearchResult{{ID: 2, Distance: 1}, {ID: 5, Distance: 1}}, got)
	assert.Equal(t, got, MergeNSearchResults(2, c, b, a))
}

func TestSortResults(t *testing.T) {
	rs := []SearchResult{{ID: 3, Distance: 2}, {ID: 2, Distance: 1}, {ID: 1, Distance: 2}}
	SortResults(rs)
	assert.Equal(t, []SearchResult{{ID: 2, Distance: 1}, {ID: 1, Distance: 2}, {ID: 3, Distance: 2}}, rs)
}
