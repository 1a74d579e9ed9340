// Package ivf implements the inverted-file indexes IVF_FLAT and IVF_FLAT_CC.
//
// Build trains nlist centroids with k-means and appends every vector to the
// inverted list of its nearest centroid. Search ranks the centroids against
// each query, scans the nprobe closest lists exhaustively and merges the
// per-list candidates into a global top-k.
//
// IVF_FLAT_CC stores lists in fixed-size chunks of ssize rows and accepts
// further Build calls after the first one. New rows are assigned to the
// existing centroids and become visible to searches that start afterwards.
//
// # Bucket introspection
//
// With return_visited_buckets the Result carries, per query, the probed
// bucket ids and query-to-centroid distances in probe order. Because probing
// is a deterministic top-nprobe selection, the buckets visited with nprobe=n
// are a prefix of the buckets visited with nprobe=2n.
//
// With record_bucket_stats the index counts how often each bucket is probed
// and writes a CSV summary to bucket_stats_file after Build and Search.
package ivf
