package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/alwayslove2013/knowhere/distance"
)

const (
	DefaultK             = 10
	DefaultNList         = 128
	DefaultNProbe        = 8
	DefaultSSize         = 48
	DefaultMaxIterations = 25
)

// Upper bounds of the sizing options. A search allocates nq*k entries up
// front, so their product is bounded by MaxResultEntries as well.
const (
	MaxDim           = 32768
	MaxNList         = 65536
	MaxK             = 1 << 20
	MaxRows          = 1 << 40
	MaxResultEntries = 1 << 28
)

// K-means initialization names accepted by kmeans_init.
const (
	KMeansInitRandom   = "random"
	KMeansInitPlusPlus = "kmeans++"
)

// Config is the typed configuration shared by Build, Search and RangeSearch.
// Zero numeric values mean "use the default".
type Config struct {
	// IndexType is informational. When set it must name a registered family.
	IndexType string `json:"index_type,omitempty" yaml:"index_type,omitempty"`

	Metric distance.Metric `json:"metric_type" yaml:"metric_type"`
	Dim    int             `json:"dim,omitempty" yaml:"dim,omitempty"`

	K      int `json:"k,omitempty" yaml:"k,omitempty"`
	NList  int `json:"nlist,omitempty" yaml:"nlist,omitempty"`
	NProbe int `json:"nprobe,omitempty" yaml:"nprobe,omitempty"`
	SSize  int `json:"ssize,omitempty" yaml:"ssize,omitempty"`

	Seed          int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	KMeansInit    string `json:"kmeans_init,omitempty" yaml:"kmeans_init,omitempty"`

	// Radius bounds RangeSearch. For L2 results satisfy distance < radius,
	// for IP and COSINE similarity > radius.
	Radius *float32 `json:"radius,omitempty" yaml:"radius,omitempty"`
	// RangeFilter optionally bounds RangeSearch from the other side.
	RangeFilter *float32 `json:"range_filter,omitempty" yaml:"range_filter,omitempty"`

	RecordBucketStats    bool   `json:"record_bucket_stats,omitempty" yaml:"record_bucket_stats,omitempty"`
	BucketStatsFile      string `json:"bucket_stats_file,omitempty" yaml:"bucket_stats_file,omitempty"`
	ReturnVisitedBuckets bool   `json:"return_visited_buckets,omitempty" yaml:"return_visited_buckets,omitempty"`
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.K == 0 {
		c.K = DefaultK
	}
	if c.NList == 0 {
		c.NList = DefaultNList
	}
	if c.NProbe == 0 {
		c.NProbe = DefaultNProbe
	}
	if c.SSize == 0 {
		c.SSize = DefaultSSize
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.KMeansInit == "" {
		c.KMeansInit = KMeansInitRandom
	}
	return c
}

type option struct {
	key   string
	check func(c *Config) string
}

func nonNegative(key string, get func(c *Config) int) option {
	return option{key: key, check: func(c *Config) string {
		if get(c) < 0 {
			return fmt.Sprintf("must be >= 0, got %d", get(c))
		}
		return ""
	}}
}

func bounded(key string, limit int, get func(c *Config) int) option {
	return option{key: key, check: func(c *Config) string {
		switch v := get(c); {
		case v < 0:
			return fmt.Sprintf("must be >= 0, got %d", v)
		case v > limit:
			return fmt.Sprintf("must be <= %d, got %d", limit, v)
		}
		return ""
	}}
}

func finite(key string, get func(c *Config) *float32) option {
	return option{key: key, check: func(c *Config) string {
		if v := get(c); v != nil && (math.IsNaN(float64(*v)) || math.IsInf(float64(*v), 0)) {
			return "must be finite"
		}
		return ""
	}}
}

// options enumerates every key with its validation rule.
var options = []option{
	{key: "index_type", check: func(c *Config) string {
		if c.IndexType == "" {
			return ""
		}
		if _, ok := Canonical(c.IndexType); !ok {
			return fmt.Sprintf("unknown index type %q", c.IndexType)
		}
		return ""
	}},
	{key: "metric_type", check: func(c *Config) string {
		if !c.Metric.Valid() {
			return fmt.Sprintf("unsupported metric %v", c.Metric)
		}
		return ""
	}},
	bounded("dim", MaxDim, func(c *Config) int { return c.Dim }),
	bounded("k", MaxK, func(c *Config) int { return c.K }),
	bounded("nlist", MaxNList, func(c *Config) int { return c.NList }),
	nonNegative("nprobe", func(c *Config) int { return c.NProbe }),
	nonNegative("ssize", func(c *Config) int { return c.SSize }),
	nonNegative("max_iterations", func(c *Config) int { return c.MaxIterations }),
	{key: "kmeans_init", check: func(c *Config) string {
		switch c.KMeansInit {
		case "", KMeansInitRandom, KMeansInitPlusPlus:
			return ""
		}
		return fmt.Sprintf("unknown initialization %q", c.KMeansInit)
	}},
	finite("radius", func(c *Config) *float32 { return c.Radius }),
	finite("range_filter", func(c *Config) *float32 { return c.RangeFilter }),
	{key: "bucket_stats_file", check: func(c *Config) string {
		if c.BucketStatsFile != "" && !c.RecordBucketStats {
			return "requires record_bucket_stats"
		}
		return ""
	}},
}

// Validate checks every option and joins all violations.
func (c Config) Validate() error {
	var errs []error
	for _, opt := range options {
		if reason := opt.check(&c); reason != "" {
			errs = append(errs, &ConfigError{Key: opt.key, Reason: reason})
		}
	}
	return errors.Join(errs...)
}

// ParseConfig decodes a JSON object into a Config and validates it.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, &ConfigError{Reason: err.Error(), cause: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Config{}, &ConfigError{Reason: "trailing data after config object"}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParseYAMLConfig decodes a YAML document into a Config and validates it.
// Unknown keys are rejected.
func ParseYAMLConfig(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, &ConfigError{Reason: err.Error(), cause: err}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// String renders the config as JSON for logs.
func (c Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("Config{invalid: %v}", err)
	}
	return string(data)
}

// CheckDataset validates ds against the configured and the expected dimension.
// want is 0 when the index has no dimension yet.
func (c Config) CheckDataset(ds *Dataset, want int) error {
	if ds == nil || ds.Rows() == 0 {
		return ErrEmptyDataset
	}
	if c.Dim != 0 && c.Dim != ds.Dim() {
		return &ErrDimensionMismatch{Expected: c.Dim, Actual: ds.Dim()}
	}
	if want != 0 && want != ds.Dim() {
		return &ErrDimensionMismatch{Expected: want, Actual: ds.Dim()}
	}
	return nil
}

// CheckResultSize fails when a search of nq queries would allocate more
// than MaxResultEntries hits. c must have its defaults applied.
func (c Config) CheckResultSize(nq int) error {
	if c.K > 0 && nq > MaxResultEntries/c.K {
		return &ConfigError{Key: "k", Reason: fmt.Sprintf("%d queries x k=%d exceeds %d result entries", nq, c.K, MaxResultEntries)}
	}
	return nil
}

// RangeBounds converts Radius and RangeFilter into lower-is-closer scores for
// metric m. A hit qualifies when lo <= score < hi; lo is -Inf without a filter.
func (c Config) RangeBounds(m distance.Metric) (lo, hi float32, err error) {
	if c.Radius == nil {
		return 0, 0, &ConfigError{Key: "radius", Reason: "required for range search"}
	}
	toScore := func(v float32) float32 {
		if m.HigherIsCloser() {
			return -v
		}
		return v
	}
	hi = toScore(*c.Radius)
	lo = float32(math.Inf(-1))
	if c.RangeFilter != nil {
		lo = toScore(*c.RangeFilter)
		if lo > hi {
			return 0, 0, &ConfigError{Key: "range_filter", Reason: "excludes the whole radius"}
		}
	}
	return lo, hi, nil
}

// CheckDim returns a dimension error when dim differs from want.
func CheckDim(want, dim int) error {
	if want != dim {
		return &ErrDimensionMismatch{Expected: want, Actual: dim}
	}
	return nil
}
