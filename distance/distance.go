package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var s0, s1, s2, s3 float32

	n := len(a)
	b = b[:n]

	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}

	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}

	return s0 + s1 + s2 + s3
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := Norm(v)
	if norm == 0 {
		return false
	}
	vek32.MulNumber_Inplace(v, 1/norm)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricIP
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricIP:
		return "IP"
	case MetricCosine:
		return "COSINE"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name. Matching is case-insensitive.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L2":
		return MetricL2, nil
	case "IP":
		return MetricIP, nil
	case "COSINE":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m >= MetricL2 && m <= MetricCosine
}

// HigherIsCloser reports whether larger reported values mean more similar vectors.
func (m Metric) HigherIsCloser() bool {
	return m == MetricIP || m == MetricCosine
}

// NeedsNormalization reports whether vectors must be L2-normalized before scoring.
func (m Metric) NeedsNormalization() bool {
	return m == MetricCosine
}

// Report converts an internal score into the distance reported to callers.
func (m Metric) Report(score float32) float32 {
	if m.HigherIsCloser() {
		return -score
	}
	return score
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Func is a function type for distance calculation.
// The returned score is lower-is-closer regardless of metric.
type Func func(a, b []float32) float32

func negDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// Scorer returns the scoring function for the given metric.
func Scorer(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricIP, MetricCosine:
		return negDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
