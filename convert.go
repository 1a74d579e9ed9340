package knowhere

import (
	"fmt"

	"github.com/alwayslove2013/knowhere/index"
)

// ArrayToDataSet wraps a row-major rows×dim tensor. ids may be nil for
// row-offset ids.
func ArrayToDataSet(rows, dim int, tensor []float32, ids []int64) (*Dataset, error) {
	ds, err := index.NewDataset(rows, dim, tensor)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		return ds, nil
	}
	return ds.WithIDs(ids)
}

// DataSetToArray returns the shape and tensor of ds.
func DataSetToArray(ds *Dataset) (rows, dim int, tensor []float32) {
	return ds.Rows(), ds.Dim(), ds.Tensor()
}

// BucketsInfoToArray flattens the buckets visited by a search into nq*nprobe
// ids and distances. The search must have run with return_visited_buckets.
// nprobe may be smaller than the recorded width, which returns the first
// nprobe buckets of each query.
func BucketsInfoToArray(res *Result, nprobe int) ([]int64, []float32, error) {
	if res == nil || res.Visited == nil {
		return nil, nil, fmt.Errorf("%w: search did not record visited buckets", ErrDiagnosticsUnavailable)
	}
	if nprobe <= 0 {
		return nil, nil, &index.ConfigError{Key: "nprobe", Reason: fmt.Sprintf("must be positive, got %d", nprobe)}
	}
	v := res.Visited
	if nprobe > v.NProbe {
		return nil, nil, &index.ErrDimensionMismatch{Expected: v.NProbe, Actual: nprobe}
	}

	ids := make([]int64, 0, res.NQ*nprobe)
	dists := make([]float32, 0, res.NQ*nprobe)
	for q := 0; q < res.NQ; q++ {
		qi, qd := v.Query(q)
		ids = append(ids, qi[:nprobe]...)
		dists = append(dists, qd[:nprobe]...)
	}
	return ids, dists, nil
}
