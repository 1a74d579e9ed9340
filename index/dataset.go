package index

import (
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/alwayslove2013/knowhere/bitset"
)

// Dataset is a row-major batch of vectors with optional explicit ids.
//
// A Dataset owns its tensor. Indexes copy what they keep, so a Dataset may be
// reused after Build or Search returns.
type Dataset struct {
	rows   int
	dim    int
	tensor []float32
	ids    []int64
}

// NewDataset wraps a row-major tensor of rows*dim values.
func NewDataset(rows, dim int, tensor []float32) (*Dataset, error) {
	if rows <= 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: rows=%d dim=%d", ErrEmptyDataset, rows, dim)
	}
	if len(tensor) != rows*dim {
		return nil, &ErrDimensionMismatch{Expected: rows * dim, Actual: len(tensor)}
	}
	return &Dataset{rows: rows, dim: dim, tensor: tensor}, nil
}

// FromVectors copies vs into a new Dataset. All vectors must share a length.
func FromVectors(vs [][]float32) (*Dataset, error) {
	if len(vs) == 0 || len(vs[0]) == 0 {
		return nil, ErrEmptyDataset
	}
	dim := len(vs[0])
	tensor := make([]float32, 0, len(vs)*dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		tensor = append(tensor, v...)
	}
	return NewDataset(len(vs), dim, tensor)
}

// FromFloat16 converts IEEE 754 half-precision bit patterns to a Dataset.
func FromFloat16(rows, dim int, bits []uint16) (*Dataset, error) {
	if len(bits) != rows*dim {
		return nil, &ErrDimensionMismatch{Expected: rows * dim, Actual: len(bits)}
	}
	tensor := make([]float32, len(bits))
	for i, b := range bits {
		tensor[i] = float16.Frombits(b).Float32()
	}
	return NewDataset(rows, dim, tensor)
}

// FromBFloat16 converts bfloat16 bit patterns to a Dataset.
func FromBFloat16(rows, dim int, bits []uint16) (*Dataset, error) {
	if len(bits) != rows*dim {
		return nil, &ErrDimensionMismatch{Expected: rows * dim, Actual: len(bits)}
	}
	tensor := make([]float32, len(bits))
	for i, b := range bits {
		tensor[i] = math.Float32frombits(uint32(b) << 16)
	}
	return NewDataset(rows, dim, tensor)
}

// ToFloat16 encodes a float32 vector as half-precision bit patterns.
func ToFloat16(v []float32) []uint16 {
	out := make([]uint16, len(v))
	for i, f := range v {
		out[i] = float16.Fromfloat32(f).Bits()
	}
	return out
}

// WithIDs attaches explicit ids. Ids must be non-negative and unique.
func (d *Dataset) WithIDs(ids []int64) (*Dataset, error) {
	if len(ids) != d.rows {
		return nil, fmt.Errorf("%w: %d ids for %d rows", ErrInvalidID, len(ids), d.rows)
	}
	seen := bitset.New()
	for _, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
		}
		if seen.Test(id) {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		seen.Set(id)
	}
	out := *d
	out.ids = ids
	return &out, nil
}

// Rows returns the number of vectors.
func (d *Dataset) Rows() int { return d.rows }

// Dim returns the vector dimension.
func (d *Dataset) Dim() int { return d.dim }

// Tensor returns the row-major values.
func (d *Dataset) Tensor() []float32 { return d.tensor }

// IDs returns the explicit ids, or nil when ids are row offsets.
func (d *Dataset) IDs() []int64 { return d.ids }

// ID returns the id of row i.
func (d *Dataset) ID(i int) int64 {
	if d.ids == nil {
		return int64(i)
	}
	return d.ids[i]
}

// Row returns the vector at row i.
func (d *Dataset) Row(i int) []float32 {
	return d.tensor[i*d.dim : (i+1)*d.dim]
}

// Slice returns rows [lo, hi) as a Dataset sharing the tensor.
func (d *Dataset) Slice(lo, hi int) *Dataset {
	out := &Dataset{rows: hi - lo, dim: d.dim, tensor: d.tensor[lo*d.dim : hi*d.dim]}
	if d.ids != nil {
		out.ids = d.ids[lo:hi]
	} else {
		out.ids = make([]int64, hi-lo)
		for i := range out.ids {
			out.ids[i] = int64(lo + i)
		}
	}
	return out
}
