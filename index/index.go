package index

import (
	"context"
	"log/slog"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/resource"
)

// Index represents a vector index family.
//
// Implementations are not required to serialize Build against Search; the
// lifecycle wrapper in the root package provides that locking.
type Index interface {
	// Type returns the registered family name.
	Type() string

	// Version returns the layout version the index was created with.
	Version() Version

	// Build trains the index on ds and adds every row of it.
	Build(ctx context.Context, ds *Dataset, cfg Config) error

	// Search returns the cfg.K nearest neighbors of every query row.
	// Ids set in filter are skipped. A nil filter excludes nothing.
	Search(ctx context.Context, queries *Dataset, cfg Config, filter *bitset.Bitset) (*Result, error)

	// RangeSearch returns every neighbor within cfg.Radius of each query.
	RangeSearch(ctx context.Context, queries *Dataset, cfg Config, filter *bitset.Bitset) (*RangeResult, error)

	// GetVectorByIDs returns the stored vectors for ids, in the order given.
	GetVectorByIDs(ctx context.Context, ids []int64) (*Dataset, error)

	// Serialize encodes the index into named sections.
	Serialize(ctx context.Context) (*BinarySet, error)

	// Deserialize replaces the index state with the contents of bs.
	Deserialize(ctx context.Context, bs *BinarySet) error

	// Dim returns the vector dimension, or 0 before Build.
	Dim() int

	// Metric returns the metric the index was built with.
	Metric() distance.Metric

	// Count returns the number of stored vectors.
	Count() int64

	// Size returns the approximate in-memory footprint in bytes.
	Size() int64

	// IsBuilt reports whether Build or Deserialize has completed.
	IsBuilt() bool
}

// Incremental is implemented by families that accept rows after Build.
// Add is safe to call concurrently with Search.
type Incremental interface {
	Add(ctx context.Context, ds *Dataset, cfg Config) error
}

// BucketStat is the population of one bucket and how often searches
// recording statistics probed it.
type BucketStat struct {
	Bucket int64
	Count  int64
	Visits int64
}

// BucketReporter is implemented by families that partition vectors into buckets.
type BucketReporter interface {
	// NList returns the number of buckets.
	NList() int
	// BucketStats returns the population of every bucket.
	BucketStats() []BucketStat
}

// Env carries the shared resources handed to an index at creation time.
type Env struct {
	Resources *resource.Controller
	Logger    *slog.Logger
}

// WithDefaults fills nil fields: a GOMAXPROCS controller and a discarding logger.
func (e Env) WithDefaults() Env {
	if e.Resources == nil {
		e.Resources = resource.Default()
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	return e
}
