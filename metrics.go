package knowhere

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordSearch(nq, k int, d time.Duration, err error) {
//	    p.searchHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordBuild is called after each Build or Add with the number of rows.
	RecordBuild(rows int, duration time.Duration, err error)

	// RecordSearch is called after each Search or RangeSearch.
	RecordSearch(nq, k int, duration time.Duration, err error)

	// RecordSerialize is called after each Serialize with the payload size.
	RecordSerialize(bytes int64, duration time.Duration, err error)

	// RecordDeserialize is called after each Deserialize.
	RecordDeserialize(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSerialize(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordDeserialize(time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildRows         atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	SearchCount       atomic.Int64
	SearchQueries     atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	SerializeCount    atomic.Int64
	SerializeBytes    atomic.Int64
	SerializeErrors   atomic.Int64
	DeserializeCount  atomic.Int64
	DeserializeErrors atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(rows int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildRows.Add(int64(rows))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(nq, k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchQueries.Add(int64(nq))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSerialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSerialize(bytes int64, duration time.Duration, err error) {
	b.SerializeCount.Add(1)
	if err != nil {
		b.SerializeErrors.Add(1)
		return
	}
	b.SerializeBytes.Add(bytes)
}

// RecordDeserialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeserialize(_ time.Duration, err error) {
	b.DeserializeCount.Add(1)
	if err != nil {
		b.DeserializeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	stats := MetricsStats{
		BuildCount:        b.BuildCount.Load(),
		BuildRows:         b.BuildRows.Load(),
		BuildErrors:       b.BuildErrors.Load(),
		SearchCount:       b.SearchCount.Load(),
		SearchQueries:     b.SearchQueries.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SerializeCount:    b.SerializeCount.Load(),
		SerializeBytes:    b.SerializeBytes.Load(),
		DeserializeCount:  b.DeserializeCount.Load(),
		DeserializeErrors: b.DeserializeErrors.Load(),
	}
	if stats.BuildCount > 0 {
		stats.BuildAvgNanos = b.BuildTotalNanos.Load() / stats.BuildCount
	}
	if stats.SearchCount > 0 {
		stats.SearchAvgNanos = b.SearchTotalNanos.Load() / stats.SearchCount
	}
	return stats
}

// MetricsStats is a snapshot of BasicMetricsCollector.
type MetricsStats struct {
	BuildCount        int64
	BuildRows         int64
	BuildErrors       int64
	BuildAvgNanos     int64
	SearchCount       int64
	SearchQueries     int64
	SearchErrors      int64
	SearchAvgNanos    int64
	SerializeCount    int64
	SerializeBytes    int64
	DeserializeCount  int64
	DeserializeErrors int64
}
