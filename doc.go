// Package knowhere is an approximate nearest-neighbor vector index library.
//
// Three index families share one contract:
//
//   - FLAT: exact brute-force search
//   - IVF_FLAT: k-means partitioned inverted lists searched by probing the
//     nprobe nearest buckets
//   - IVF_FLAT_CC: IVF_FLAT that accepts new rows while it is searched
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := knowhere.CreateIndex("IVF_FLAT", knowhere.GetCurrentVersion())
//
//	ds, _ := knowhere.ArrayToDataSet(rows, 128, tensor, nil)
//	_ = idx.Build(ctx, ds, knowhere.Config{Metric: distance.MetricL2, NList: 1024})
//
//	res, _ := idx.Search(ctx, queries, knowhere.Config{K: 10, NProbe: 16}, nil)
//	for q := 0; q < res.NQ; q++ {
//	    fmt.Println(res.Neighbors(q))
//	}
//
// # Bucket Introspection
//
// IVF searches can report the buckets they probed:
//
//	res, _ := idx.Search(ctx, queries, knowhere.Config{NProbe: 12, ReturnVisitedBuckets: true}, nil)
//	ids, dists, _ := knowhere.BucketsInfoToArray(res, 12)
//
// Building with RecordBucketStats and BucketStatsFile writes a CSV of the
// bucket populations, and BucketStats returns them together with how often
// searches visited each bucket.
//
// # Persistence
//
// Serialize and Deserialize convert an index to and from a BinarySet of named
// sections. Dump and Load store a BinarySet in a checksummed file; DumpTo and
// LoadFrom do the same for any blobstore.BlobStore (local, memory, S3, MinIO):
//
//	_ = idx.Save(ctx, "ivf.kwbs", persistence.Options{Compression: compress.ZSTD})
//
//	loaded, _ := knowhere.CreateIndex("IVF_FLAT", knowhere.GetCurrentVersion())
//	_ = loaded.Open(ctx, "ivf.kwbs", persistence.Options{})
//
// # Resources
//
// Build and search run on bounded worker pools owned by a resource.Controller.
// Indexes share a package default unless WithResourceController is given:
//
//	rc := resource.NewController(resource.Config{BuildThreads: 8, SearchThreads: 4})
//	idx, _ := knowhere.CreateIndex("IVF_FLAT_CC", knowhere.GetCurrentVersion(), knowhere.WithResourceController(rc))
package knowhere
