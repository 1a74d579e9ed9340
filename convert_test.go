package knowhere

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/testutil"
)

func TestArrayToDataSet(t *testing.T) {
	ds, err := ArrayToDataSet(2, 3, []float32{1, 2, 3, 4, 5, 6}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.ID(1))

	rows, dim, tensor := DataSetToArray(ds)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, dim)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor)

	ds, err = ArrayToDataSet(2, 3, []float32{1, 2, 3, 4, 5, 6}, []int64{7, 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), ds.ID(1))

	_, err = ArrayToDataSet(2, 3, []float32{1, 2, 3}, nil)
	assert.Error(t, err)

	_, err = ArrayToDataSet(2, 3, []float32{1, 2, 3, 4, 5, 6}, []int64{1, 1})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestBucketsInfoToArray(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(20)
	ds := rng.Dataset(600, 8)
	queries := rng.Dataset(4, 8)

	idx := newIndex(t, TypeIVFFlat)
	require.NoError(t, idx.Build(ctx, ds, Config{NList: 12}))

	res, err := idx.Search(ctx, queries, Config{K: 5, NProbe: 6, ReturnVisitedBuckets: true}, nil)
	require.NoError(t, err)

	t.Run("FullWidth", func(t *testing.T) {
		ids, dists, err := BucketsInfoToArray(res, 6)
		require.NoError(t, err)
		require.Len(t, ids, 4*6)
		require.Len(t, dists, 4*6)
		for q := 0; q < 4; q++ {
			seen := map[int64]bool{}
			for j := 0; j < 6; j++ {
				id := ids[q*6+j]
				assert.GreaterOrEqual(t, id, int64(0))
				assert.Less(t, id, int64(12))
				assert.False(t, seen[id])
				seen[id] = true
				if j > 0 {
					assert.LessOrEqual(t, dists[q*6+j-1], dists[q*6+j])
				}
			}
		}
	})

	t.Run("Prefix", func(t *testing.T) {
		full, _, err := BucketsInfoToArray(res, 6)
		require.NoError(t, err)
		ids, _, err := BucketsInfoToArray(res, 2)
		require.NoError(t, err)
		for q := 0; q < 4; q++ {
			assert.Equal(t, full[q*6:q*6+2], ids[q*2:q*2+2])
		}
	})

	t.Run("TooWide", func(t *testing.T) {
		_, _, err := BucketsInfoToArray(res, 7)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("NonPositive", func(t *testing.T) {
		_, _, err := BucketsInfoToArray(res, 0)
		assert.ErrorIs(t, err, ErrConfigParse)
	})

	t.Run("NotRecorded", func(t *testing.T) {
		plain, err := idx.Search(ctx, queries, Config{K: 5, NProbe: 6}, nil)
		require.NoError(t, err)
		_, _, err = BucketsInfoToArray(plain, 6)
		assert.ErrorIs(t, err, ErrDiagnosticsUnavailable)
		_, _, err = BucketsInfoToArray(nil, 6)
		assert.ErrorIs(t, err, ErrDiagnosticsUnavailable)
	})

	t.Run("Clamped", func(t *testing.T) {
		wide, err := idx.Search(ctx, queries, Config{K: 5, NProbe: 100, ReturnVisitedBuckets: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, 12, wide.Visited.NProbe)
		_, _, err = BucketsInfoToArray(wide, 100)
		var dm *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 12, dm.Expected)
	})
}
