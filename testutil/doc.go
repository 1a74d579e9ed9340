// Package testutil provides testing utilities for the index packages.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	ds := rng.Dataset(10_000, 128)    // uniform [0, 1)
//	vecs := rng.UnitVectors(100, 128) // on the unit sphere
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.BruteForceSearch(ds, query, k, distance.MetricL2)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, res.Neighbors(q))
package testutil
