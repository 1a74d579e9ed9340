package knowhere_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwayslove2013/knowhere"
	"github.com/alwayslove2013/knowhere/blobstore"
	"github.com/alwayslove2013/knowhere/internal/compress"
	"github.com/alwayslove2013/knowhere/persistence"
	"github.com/alwayslove2013/knowhere/testutil"
)

const benchDim = 128

func benchIndex(b *testing.B, typ string, rows int, cfg knowhere.Config) *knowhere.Index {
	b.Helper()
	idx, err := knowhere.CreateIndex(typ, knowhere.GetCurrentVersion())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	ds := testutil.NewRNG(1).Dataset(rows, benchDim)
	if err := idx.Build(context.Background(), ds, cfg); err != nil {
		b.Fatal(err)
	}
	return idx
}

// BenchmarkBuild measures k-means training plus list assignment.
func BenchmarkBuild(b *testing.B) {
	ctx := context.Background()
	ds := testutil.NewRNG(1).Dataset(20_000, benchDim)

	for _, nlist := range []int{64, 256} {
		b.Run(fmt.Sprintf("nlist=%d", nlist), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				idx, err := knowhere.CreateIndex(knowhere.TypeIVFFlat, knowhere.GetCurrentVersion())
				if err != nil {
					b.Fatal(err)
				}
				if err := idx.Build(ctx, ds, knowhere.Config{NList: nlist, MaxIterations: 10}); err != nil {
					b.Fatal(err)
				}
				_ = idx.Close()
			}
		})
	}
}

// BenchmarkSearch sweeps nprobe on a fixed IVF_FLAT index and reports recall.
func BenchmarkSearch(b *testing.B) {
	ctx := context.Background()
	const k = 10
	idx := benchIndex(b, knowhere.TypeIVFFlat, 20_000, knowhere.Config{NList: 128, MaxIterations: 10})
	queries := testutil.NewRNG(2).Dataset(64, benchDim)

	for _, nprobe := range []int{1, 8, 32} {
		b.Run(fmt.Sprintf("nprobe=%d", nprobe), func(b *testing.B) {
			cfg := knowhere.Config{K: k, NProbe: nprobe}
			b.ReportAllocs()
			for b.Loop() {
				if _, err := idx.Search(ctx, queries, cfg, nil); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(queries.Rows()*b.N)/b.Elapsed().Seconds(), "queries/s")
		})
	}
}

// BenchmarkFlatSearch is the exhaustive baseline for BenchmarkSearch.
func BenchmarkFlatSearch(b *testing.B) {
	ctx := context.Background()
	idx := benchIndex(b, knowhere.TypeFlat, 20_000, knowhere.Config{})
	queries := testutil.NewRNG(2).Dataset(64, benchDim)

	b.ReportAllocs()
	for b.Loop() {
		if _, err := idx.Search(ctx, queries, knowhere.Config{K: 10}, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAdd measures incremental inserts into IVF_FLAT_CC.
func BenchmarkAdd(b *testing.B) {
	ctx := context.Background()
	idx := benchIndex(b, knowhere.TypeIVFFlatCC, 5_000, knowhere.Config{NList: 64, MaxIterations: 5})
	batch := testutil.NewRNG(3).UniformTensor(256, benchDim)

	b.ReportAllocs()
	for b.Loop() {
		ds, err := knowhere.ArrayToDataSet(256, benchDim, batch, nil)
		if err != nil {
			b.Fatal(err)
		}
		if err := idx.Add(ctx, ds, knowhere.Config{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDump compares the section compressions on a serialized index.
func BenchmarkDump(b *testing.B) {
	ctx := context.Background()
	idx := benchIndex(b, knowhere.TypeIVFFlat, 10_000, knowhere.Config{NList: 64, MaxIterations: 5})
	bs, err := idx.Serialize(ctx)
	if err != nil {
		b.Fatal(err)
	}

	for _, c := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		b.Run(c.String(), func(b *testing.B) {
			store := blobstore.NewMemoryStore()
			var n int64
			for b.Loop() {
				n, err = knowhere.DumpTo(ctx, store, "bench.kwbs", bs, persistence.Options{Compression: c})
				if err != nil {
					b.Fatal(err)
				}
			}
			b.SetBytes(n)
		})
	}
}
