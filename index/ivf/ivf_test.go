package ivf

import (
	"context"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/resource"
	"github.com/alwayslove2013/knowhere/testutil"
)

func newTestIndex(t *testing.T, concurrent bool, threads int) *IVF {
	t.Helper()
	rc := resource.NewController(resource.Config{BuildThreads: threads, SearchThreads: threads})
	return New(index.CurrentVersion, index.Env{Resources: rc}, concurrent)
}

func buildTestIndex(t *testing.T, ds *index.Dataset, cfg index.Config) *IVF {
	t.Helper()
	x := newTestIndex(t, false, 4)
	require.NoError(t, x.Build(context.Background(), ds, cfg))
	return x
}

func TestBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)
	ds := rng.Dataset(2000, 16)
	queries := rng.Dataset(20, 16)

	x := buildTestIndex(t, ds, index.Config{NList: 16, Seed: 1})
	assert.True(t, x.IsBuilt())
	assert.Equal(t, index.TypeIVFFlat, x.Type())
	assert.Equal(t, 16, x.Dim())
	assert.Equal(t, int64(2000), x.Count())
	assert.Positive(t, x.Size())

	var total int64
	for _, s := range x.BucketStats() {
		total += s.Count
	}
	assert.Equal(t, int64(2000), total)

	res, err := x.Search(ctx, queries, index.Config{NList: 16, NProbe: 16, K: 10}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Visited)

	// Probing every bucket is exhaustive.
	assert.Equal(t, 1.0, testutil.BatchRecall(ds, queries, res, distance.MetricL2))

	for q := 0; q < queries.Rows(); q++ {
		hits := res.Neighbors(q)
		require.Len(t, hits, 10)
		seen := map[int64]bool{}
		for i, h := range hits {
			assert.False(t, seen[h.ID], "duplicate id %d", h.ID)
			seen[h.ID] = true
			if i > 0 {
				assert.True(t, index.Less(hits[i-1], h))
			}
		}
	}
}

func TestRecallRisesWithNProbe(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)
	ds := rng.Dataset(3000, 32)
	queries := rng.Dataset(10, 32)

	x := buildTestIndex(t, ds, index.Config{NList: 30})

	prev := -1.0
	for _, nprobe := range []int{1, 4, 8, 16, 30} {
		res, err := x.Search(ctx, queries, index.Config{NProbe: nprobe, K: 10}, nil)
		require.NoError(t, err)
		recall := testutil.BatchRecall(ds, queries, res, distance.MetricL2)
		assert.GreaterOrEqual(t, recall, prev, "nprobe=%d", nprobe)
		prev = recall
	}
	assert.Equal(t, 1.0, prev)
}

func TestVisitedBucketsPrefix(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(42)
	ds := rng.Dataset(3000, 16)
	queries := rng.Dataset(10, 16)

	x := buildTestIndex(t, ds, index.Config{NList: 40})

	cfg := index.Config{NProbe: 8, K: 20, ReturnVisitedBuckets: true}
	res1, err := x.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)

	cfg.NProbe = 16
	res2, err := x.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)

	require.NotNil(t, res1.Visited)
	require.NotNil(t, res2.Visited)
	assert.Equal(t, 8, res1.Visited.NProbe)
	assert.Equal(t, 16, res2.Visited.NProbe)

	for q := 0; q < queries.Rows(); q++ {
		ids1, d1 := res1.Visited.Query(q)
		ids2, d2 := res2.Visited.Query(q)
		assert.Equal(t, ids1, ids2[:8])
		assert.Equal(t, d1, d2[:8])

		seen := map[int64]bool{}
		for i, id := range ids2 {
			assert.False(t, seen[id])
			seen[id] = true
			assert.GreaterOrEqual(t, id, int64(0))
			assert.Less(t, id, int64(40))
			if i > 0 {
				assert.LessOrEqual(t, d2[i-1], d2[i])
			}
		}
	}
}

func TestSelectBuckets(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	ds := rng.Dataset(500, 8)
	x := buildTestIndex(t, ds, index.Config{NList: 10})

	q := ds.Row(0)
	got, err := x.SelectBuckets(ctx, q, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, index.Less(got[i-1], got[i]))
	}

	// Independent of k and clamped to nlist.
	all, err := x.SelectBuckets(ctx, q, 100)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, got, all[:4])

	_, err = x.SelectBuckets(ctx, q[:3], 4)
	assert.ErrorIs(t, err, index.ErrDimension)
}

func TestNProbeClamped(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)
	ds := rng.Dataset(300, 4)
	x := buildTestIndex(t, ds, index.Config{NList: 5})

	res, err := x.Search(ctx, rng.Dataset(2, 4), index.Config{NProbe: 50, K: 3, ReturnVisitedBuckets: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Visited.NProbe)
	assert.Len(t, res.Visited.IDs, 10)
}

func TestSplitScanMatchesSequential(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)
	ds := rng.Dataset(2000, 8)
	queries := rng.Dataset(3, 8)
	cfg := index.Config{NList: 20, NProbe: 12, K: 15}

	wide := newTestIndex(t, false, 16)
	require.NoError(t, wide.Build(ctx, ds, cfg))
	narrow := newTestIndex(t, false, 1)
	require.NoError(t, narrow.Build(ctx, ds, cfg))

	a, err := wide.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)
	b, err := narrow.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, b.IDs, a.IDs)
	assert.Equal(t, b.Distances, a.Distances)
}

func TestSearchDeterministic(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(13)
	ds := rng.Dataset(1000, 8)
	queries := rng.Dataset(5, 8)
	x := buildTestIndex(t, ds, index.Config{NList: 10})

	cfg := index.Config{NProbe: 3, K: 7, ReturnVisitedBuckets: true}
	first, err := x.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := x.Search(ctx, queries, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchWithBitset(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(17)
	ds := rng.Dataset(200, 4)
	x := buildTestIndex(t, ds, index.Config{NList: 4})

	excluded := make([]bool, 200)
	for i := 0; i < 197; i++ {
		excluded[i] = true
	}
	filter := bitset.FromBools(excluded)

	res, err := x.Search(ctx, rng.Dataset(1, 4), index.Config{NProbe: 4, K: 5}, filter)
	require.NoError(t, err)

	hits := res.Neighbors(0)
	require.Len(t, hits, 3)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.ID, int64(197))
	}
	assert.Equal(t, []int64{-1, -1}, res.IDs[3:])
}

func TestInnerProductOrdering(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(19)
	ds := rng.Dataset(1000, 8)
	queries := rng.Dataset(4, 8)

	cfg := index.Config{Metric: distance.MetricIP, NList: 8, NProbe: 8, K: 10, ReturnVisitedBuckets: true}
	x := buildTestIndex(t, ds, cfg)

	res, err := x.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.BatchRecall(ds, queries, res, distance.MetricIP))

	for q := 0; q < queries.Rows(); q++ {
		hits := res.Neighbors(q)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		}
		_, bd := res.Visited.Query(q)
		for i := 1; i < len(bd); i++ {
			assert.GreaterOrEqual(t, bd[i-1], bd[i])
		}
	}
}

func TestCosine(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(23)
	ds := rng.Dataset(800, 8)
	queries := rng.Dataset(4, 8)

	cfg := index.Config{Metric: distance.MetricCosine, NList: 8, NProbe: 8, K: 5}
	x := buildTestIndex(t, ds, cfg)

	res, err := x.Search(ctx, queries, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.BatchRecall(ds, queries, res, distance.MetricCosine))
	for _, d := range res.Distances {
		assert.LessOrEqual(t, d, float32(1.0001))
	}
}

func TestRangeSearch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(29)
	ds := rng.Dataset(500, 4)
	x := buildTestIndex(t, ds, index.Config{NList: 5})

	radius := float32(0.1)
	queries := rng.Dataset(3, 4)
	res, err := x.RangeSearch(ctx, queries, index.Config{NProbe: 5, Radius: &radius}, nil)
	require.NoError(t, err)

	for q := 0; q < queries.Rows(); q++ {
		var want []int64
		for _, h := range testutil.BruteForceSearch(ds, queries.Row(q), ds.Rows(), distance.MetricL2) {
			if h.Distance < radius {
				want = append(want, h.ID)
			}
		}
		var got []int64
		for _, h := range res.Neighbors(q) {
			got = append(got, h.ID)
		}
		assert.Equal(t, want, got)
	}

	_, err = x.RangeSearch(ctx, queries, index.Config{}, nil)
	assert.ErrorIs(t, err, index.ErrConfigParse)

	rf := float32(0.2)
	_, err = x.RangeSearch(ctx, queries, index.Config{Radius: &radius, RangeFilter: &rf}, nil)
	assert.ErrorIs(t, err, index.ErrConfigParse)
}

func TestLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(31)
	ds := rng.Dataset(100, 4)

	x := newTestIndex(t, false, 2)
	_, err := x.Search(ctx, ds, index.Config{}, nil)
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	_, err = x.Serialize(ctx)
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	assert.Nil(t, x.BucketStats())
	assert.Zero(t, x.Dim())

	err = x.Build(ctx, ds, index.Config{NList: 200})
	assert.ErrorIs(t, err, index.ErrInsufficientTrainingData)

	err = x.Build(ctx, ds, index.Config{NList: 4, Dim: 8})
	assert.ErrorIs(t, err, index.ErrDimension)

	err = x.Build(ctx, ds, index.Config{NList: -4})
	assert.ErrorIs(t, err, index.ErrConfigParse)

	require.NoError(t, x.Build(ctx, ds, index.Config{NList: 4}))
	assert.ErrorIs(t, x.Build(ctx, ds, index.Config{NList: 4}), index.ErrAlreadyBuilt)
	assert.ErrorIs(t, x.Add(ctx, ds, index.Config{}), index.ErrAlreadyBuilt)

	_, err = x.Search(ctx, rng.Dataset(1, 5), index.Config{}, nil)
	assert.ErrorIs(t, err, index.ErrDimension)

	_, err = x.Search(ctx, rng.Dataset(1, 4), index.Config{Metric: distance.MetricIP}, nil)
	assert.ErrorIs(t, err, index.ErrConfigParse)
}

func TestOversizedK(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(33)
	x := buildTestIndex(t, rng.Dataset(100, 4), index.Config{NList: 4})

	_, err := x.Search(ctx, rng.Dataset(10, 4), index.Config{K: 1 << 50}, nil)
	assert.ErrorIs(t, err, index.ErrConfigParse)

	_, err = x.Search(ctx, rng.Dataset(1000, 4), index.Config{K: index.MaxK}, nil)
	var ce *index.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "k", ce.Key)

	res, err := x.Search(ctx, rng.Dataset(2, 4), index.Config{K: 500}, nil)
	require.NoError(t, err)
	assert.Len(t, res.IDs, 1000)
	assert.Equal(t, int64(-1), res.IDs[999])
}

func TestExplicitIDs(t *testing.T) {
	ctx := context.Background()
	ds, err := index.FromVectors([][]float32{{0, 0}, {10, 10}, {0, 1}, {10, 11}})
	require.NoError(t, err)
	ds, err = ds.WithIDs([]int64{100, 200, 300, 400})
	require.NoError(t, err)

	x := buildTestIndex(t, ds, index.Config{NList: 2})

	res, err := x.Search(ctx, mustVectors(t, []float32{0, 0.4}), index.Config{NProbe: 2, K: 2}, bitset.Of(100))
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, res.IDs)

	vecs, err := x.GetVectorByIDs(ctx, []int64{400, 100})
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 11, 0, 0}, vecs.Tensor())
	assert.Equal(t, []int64{400, 100}, vecs.IDs())

	_, err = x.GetVectorByIDs(ctx, []int64{5})
	assert.ErrorIs(t, err, index.ErrInvalidID)
}

func TestConcurrentIncremental(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(37)
	cfg := index.Config{NList: 8, SSize: 16, NProbe: 8, K: 5}

	x := newTestIndex(t, true, 4)
	assert.Equal(t, index.TypeIVFFlatCC, x.Type())
	require.NoError(t, x.Build(ctx, rng.Dataset(400, 8), cfg))

	// RNG is not safe for concurrent use.
	queries := make([]*index.Dataset, 4)
	for w := range queries {
		queries[w] = rng.Dataset(2, 8)
	}
	batches := make([]*index.Dataset, 5)
	for i := range batches {
		batches[i] = rng.Dataset(100, 8)
	}

	var wg sync.WaitGroup
	for w := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				res, err := x.Search(ctx, queries[w], cfg, nil)
				if assert.NoError(t, err) {
					assert.Len(t, res.Neighbors(0), 5)
				}
			}
		}()
	}
	for _, b := range batches {
		require.NoError(t, x.Add(ctx, b, cfg))
	}
	wg.Wait()

	assert.Equal(t, int64(900), x.Count())
	vecs, err := x.GetVectorByIDs(ctx, []int64{0, 899})
	require.NoError(t, err)
	assert.Equal(t, 2, vecs.Rows())

	dup, err := rng.Dataset(1, 8).WithIDs([]int64{3})
	require.NoError(t, err)
	assert.ErrorIs(t, x.Add(ctx, dup, cfg), index.ErrDuplicateID)
	assert.Equal(t, int64(900), x.Count())
}

func TestSerializeRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(41)
	ds := rng.Dataset(1500, 12)
	queries := rng.Dataset(6, 12)

	for _, concurrent := range []bool{false, true} {
		x := newTestIndex(t, concurrent, 4)
		cfg := index.Config{NList: 12, NProbe: 5, K: 10, ReturnVisitedBuckets: true, SSize: 7}
		require.NoError(t, x.Build(ctx, ds, cfg))

		bs, err := x.Serialize(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{index.SectionMeta, SectionCentroids, SectionLists}, bs.Names())

		y := newTestIndex(t, concurrent, 2)
		require.NoError(t, y.Deserialize(ctx, bs))
		assert.Equal(t, x.Count(), y.Count())
		assert.Equal(t, x.BucketStats(), y.BucketStats())

		want, err := x.Search(ctx, queries, cfg, nil)
		require.NoError(t, err)
		got, err := y.Search(ctx, queries, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDeserializeErrors(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(43)
	x := buildTestIndex(t, rng.Dataset(200, 4), index.Config{NList: 4})
	bs, err := x.Serialize(ctx)
	require.NoError(t, err)

	clone := func(skip string, replace map[string][]byte) *index.BinarySet {
		out := index.NewBinarySet()
		for _, name := range bs.Names() {
			if name == skip {
				continue
			}
			data, _ := bs.Get(name)
			if r, ok := replace[name]; ok {
				data = r
			}
			out.Append(name, data)
		}
		return out
	}

	lists, _ := bs.Get(SectionLists)
	centroids, _ := bs.Get(SectionCentroids)
	meta, _ := bs.Get(index.SectionMeta)

	hugeList := binary.LittleEndian.AppendUint32(nil, 4)
	hugeList = binary.LittleEndian.AppendUint32(hugeList, 0xFFFFFFFF)

	tests := []struct {
		name string
		bs   *index.BinarySet
		want error
	}{
		{"MissingLists", clone(SectionLists, nil), index.ErrSerializationCorrupt},
		{"TruncatedLists", clone("", map[string][]byte{SectionLists: lists[:len(lists)-3]}), index.ErrSerializationCorrupt},
		{"TruncatedCentroids", clone("", map[string][]byte{SectionCentroids: centroids[:8]}), index.ErrSerializationCorrupt},
		{"BadMeta", clone("", map[string][]byte{index.SectionMeta: []byte("not json")}), index.ErrSerializationCorrupt},
		{"FutureVersion", clone("", map[string][]byte{index.SectionMeta: []byte(`{"type":"IVF_FLAT","version":99,"dim":4,"count":200,"nlist":4}`)}), index.ErrVersionMismatch},
		{"HugeDim", clone("", map[string][]byte{index.SectionMeta: rewriteMeta(t, meta, "dim", 1<<62), SectionCentroids: nil}), index.ErrSerializationCorrupt},
		{"DimAboveLimit", clone("", map[string][]byte{index.SectionMeta: rewriteMeta(t, meta, "dim", index.MaxDim+1)}), index.ErrSerializationCorrupt},
		{"HugeNList", clone("", map[string][]byte{index.SectionMeta: rewriteMeta(t, meta, "nlist", 1<<40)}), index.ErrSerializationCorrupt},
		{"HugeListLength", clone("", map[string][]byte{SectionLists: hugeList}), index.ErrSerializationCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := newTestIndex(t, false, 1)
			assert.ErrorIs(t, y.Deserialize(ctx, tt.bs), tt.want)
			assert.False(t, y.IsBuilt())
		})
	}

	cc := newTestIndex(t, true, 1)
	assert.ErrorIs(t, cc.Deserialize(ctx, bs), index.ErrSerializationCorrupt)
}

func TestBucketStatsFile(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(47)
	path := filepath.Join(t.TempDir(), "bucket_stats.csv")
	cfg := index.Config{NList: 6, NProbe: 2, K: 3, RecordBucketStats: true, BucketStatsFile: path}

	x := buildTestIndex(t, rng.Dataset(300, 4), cfg)

	rows := readCSV(t, path)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"bucket_id", "num_vectors", "fraction", "visits"}, rows[0])

	_, err := x.Search(ctx, rng.Dataset(5, 4), cfg, nil)
	require.NoError(t, err)

	var visits int64
	for _, s := range x.BucketStats() {
		visits += s.Visits
	}
	assert.Equal(t, int64(10), visits)
	assert.Len(t, readCSV(t, path), 7)

	x.ResetBucketVisits()
	for _, s := range x.BucketStats() {
		assert.Zero(t, s.Visits)
	}
}

func TestBuildFailsOnUnwritableStatsFile(t *testing.T) {
	ctx := context.Background()
	ds := testutil.NewRNG(48).Dataset(300, 4)
	x := newTestIndex(t, false, 2)

	bad := filepath.Join(t.TempDir(), "missing", "stats.csv")
	err := x.Build(ctx, ds, index.Config{NList: 6, RecordBucketStats: true, BucketStatsFile: bad})
	require.Error(t, err)
	assert.False(t, x.IsBuilt())
	assert.Zero(t, x.Count())
	assert.Zero(t, x.rc.MemoryUsage())
	assert.NoFileExists(t, bad)

	good := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, x.Build(ctx, ds, index.Config{NList: 6, RecordBucketStats: true, BucketStatsFile: good}))
	assert.True(t, x.IsBuilt())
	assert.Equal(t, int64(300), x.Count())
	assert.Len(t, readCSV(t, good), 7)
}

func TestBuildAboveMemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{BuildThreads: 2, MemoryLimitBytes: 1024})
	x := New(index.CurrentVersion, index.Env{Resources: rc}, false)

	err := x.Build(context.Background(), testutil.NewRNG(49).Dataset(200, 8), index.Config{NList: 4})
	assert.ErrorIs(t, err, resource.ErrMemoryLimit)
	assert.False(t, x.IsBuilt())
	assert.Zero(t, rc.MemoryUsage())
}

// rewriteMeta returns meta with key set to v.
func rewriteMeta(t *testing.T, meta []byte, key string, v any) []byte {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(meta, &m))
	m[key] = v
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func mustVectors(t *testing.T, vs ...[]float32) *index.Dataset {
	t.Helper()
	ds, err := index.FromVectors(vs)
	require.NoError(t, err)
	return ds
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"IVF_FLAT", "ivfflat", "IVFFLATCC", "IVF_FLAT_CC"} {
		idx, err := index.New(name, index.CurrentVersion, index.Env{})
		require.NoError(t, err, name)
		assert.False(t, idx.IsBuilt())
	}
}
