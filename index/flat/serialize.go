package flat

import (
	"context"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
)

// Section names written by Serialize.
const (
	SectionVectors = "vectors"
	SectionIDs     = "ids"
)

// Serialize encodes the index as meta, vectors and ids sections.
func (f *Flat) Serialize(_ context.Context) (*index.BinarySet, error) {
	if !f.IsBuilt() {
		return nil, index.ErrNotBuilt
	}
	st := f.state.Load()

	bs := index.NewBinarySet()
	err := index.EncodeMeta(bs, index.Meta{
		Type:    index.TypeFlat,
		Version: f.version,
		Dim:     f.dim,
		Metric:  f.metric,
		Count:   int64(len(st.ids)),
	})
	if err != nil {
		return nil, err
	}

	vw := index.NewWriter(len(st.tensor) * 4)
	vw.Float32s(st.tensor)
	bs.Append(SectionVectors, vw.Bytes())

	iw := index.NewWriter(len(st.ids) * 8)
	iw.Int64s(st.ids)
	bs.Append(SectionIDs, iw.Bytes())

	return bs, nil
}

// Deserialize replaces the index with the contents of bs.
func (f *Flat) Deserialize(ctx context.Context, bs *index.BinarySet) error {
	meta, err := index.DecodeMeta(bs, index.TypeFlat, f.version)
	if err != nil {
		return err
	}
	if !meta.Metric.Valid() {
		return index.Corrupt(index.SectionMeta, "invalid metric %d", int(meta.Metric))
	}
	score, err := distance.Scorer(meta.Metric)
	if err != nil {
		return err
	}
	n := int(meta.Count)

	data, err := bs.Require(SectionVectors)
	if err != nil {
		return err
	}
	vr := index.NewReader(SectionVectors, data)
	tensor := vr.Float32s(n * meta.Dim)
	if err := vr.Done(); err != nil {
		return err
	}

	data, err = bs.Require(SectionIDs)
	if err != nil {
		return err
	}
	ir := index.NewReader(SectionIDs, data)
	ids := ir.Int64s(n)
	if err := ir.Done(); err != nil {
		return err
	}

	pos := make(map[int64]int, n)
	for i, id := range ids {
		if _, dup := pos[id]; dup || id < 0 {
			return index.Corrupt(SectionIDs, "invalid or duplicate id %d", id)
		}
		pos[id] = i
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	bytes := int64(n) * int64(meta.Dim*4+8)
	if err := f.rc.AcquireMemory(ctx, bytes); err != nil {
		return err
	}
	f.rc.ReleaseMemory(f.memHeld)
	f.memHeld = bytes

	f.dim = meta.Dim
	f.metric = meta.Metric
	f.score = score
	f.state.Store(&state{tensor: tensor, ids: ids, pos: pos})
	f.built.Store(true)

	f.logger.DebugContext(ctx, "index deserialized",
		"index_type", index.TypeFlat,
		"version", int(meta.Version),
		"count", n,
	)
	return nil
}
