// Package distance provides the metrics supported by the index families and
// the float32 kernels behind them.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance (default, lower is closer)
//   - MetricIP: inner product (higher is closer)
//   - MetricCosine: cosine similarity on L2-normalized vectors (higher is closer)
//
// Internally every metric is turned into a score where lower is better, so
// heaps and merges never need to know the metric. Report converts a score
// back into the value returned to callers.
//
// # Usage
//
//	score, _ := distance.Scorer(distance.MetricIP)
//	s := score(a, b)
//	sim := distance.MetricIP.Report(s)
package distance
