package ivf

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
)

// Section names written by Serialize.
const (
	SectionCentroids = "centroids"
	SectionLists     = "lists"
)

// Serialize encodes the index as meta, centroids and lists sections. Lists
// are written as: u32 nlist, then per list u32 n, n int64 ids, n*dim float32.
func (x *IVF) Serialize(_ context.Context) (*index.BinarySet, error) {
	if !x.IsBuilt() {
		return nil, index.ErrNotBuilt
	}
	x.addMu.Lock()
	defer x.addMu.Unlock()

	bs := index.NewBinarySet()
	err := index.EncodeMeta(bs, index.Meta{
		Type:    x.Type(),
		Version: x.version,
		Dim:     x.dim,
		Metric:  x.metric,
		Count:   x.count.Load(),
		NList:   x.nlist,
		SSize:   x.ssize,
	})
	if err != nil {
		return nil, err
	}

	cw := index.NewWriter(len(x.centroids) * 4)
	cw.Float32s(x.centroids)
	bs.Append(SectionCentroids, cw.Bytes())

	lw := index.NewWriter(4 + x.nlist*4 + int(x.count.Load())*(8+x.dim*4))
	lw.Uint32(uint32(x.nlist))
	for _, l := range x.lists {
		ids, vecs := l.flatten()
		lw.Uint32(uint32(len(ids)))
		lw.Int64s(ids)
		lw.Float32s(vecs)
	}
	bs.Append(SectionLists, lw.Bytes())

	return bs, nil
}

// Deserialize replaces the index with the contents of bs.
func (x *IVF) Deserialize(ctx context.Context, bs *index.BinarySet) error {
	meta, err := index.DecodeMeta(bs, x.Type(), x.version)
	if err != nil {
		return err
	}
	if meta.NList <= 0 {
		return index.Corrupt(index.SectionMeta, "invalid nlist %d", meta.NList)
	}
	if !meta.Metric.Valid() {
		return index.Corrupt(index.SectionMeta, "invalid metric %d", int(meta.Metric))
	}
	score, err := distance.Scorer(meta.Metric)
	if err != nil {
		return err
	}

	data, err := bs.Require(SectionCentroids)
	if err != nil {
		return err
	}
	cr := index.NewReader(SectionCentroids, data)
	centroids := cr.Float32s(meta.NList * meta.Dim)
	if err := cr.Done(); err != nil {
		return err
	}

	data, err = bs.Require(SectionLists)
	if err != nil {
		return err
	}
	lr := index.NewReader(SectionLists, data)
	if n := lr.Uint32(); lr.Err() == nil && int(n) != meta.NList {
		return index.Corrupt(SectionLists, "%d lists, meta says %d", n, meta.NList)
	}

	type decoded struct {
		ids  []int64
		vecs []float32
	}
	lists := make([]decoded, meta.NList)
	var total int64
	for i := range lists {
		n := int(lr.Uint32())
		lists[i].ids = lr.Int64s(n)
		lists[i].vecs = lr.Float32s(n * meta.Dim)
		total += int64(n)
	}
	if err := lr.Done(); err != nil {
		return err
	}
	if total != meta.Count {
		return index.Corrupt(SectionLists, "%d vectors, meta says %d", total, meta.Count)
	}

	ssize := meta.SSize
	if ssize <= 0 {
		ssize = index.DefaultSSize
	}
	built := make([]*invertedList, meta.NList)
	loc := newLocator(int(total))
	for i, d := range lists {
		chunkRows := ssize
		if !x.concurrent {
			chunkRows = max(len(d.ids), 1)
		}
		built[i] = newInvertedList(meta.Dim, chunkRows)
		built[i].append(d.ids, d.vecs)
		for pos, id := range d.ids {
			if _, dup := loc.locs[id]; dup || id < 0 {
				return index.Corrupt(SectionLists, "invalid or duplicate id %d", id)
			}
			loc.locs[id] = location{list: int32(i), pos: int32(pos)}
		}
	}

	x.addMu.Lock()
	defer x.addMu.Unlock()

	bytes := total * int64(meta.Dim*4+8)
	if err := x.rc.AcquireMemory(ctx, bytes); err != nil {
		return err
	}
	x.rc.ReleaseMemory(x.memHeld)
	x.memHeld = bytes

	x.dim = meta.Dim
	x.metric = meta.Metric
	x.score = score
	x.nlist = meta.NList
	x.ssize = ssize
	x.centroids = centroids
	x.lists = built
	x.loc = loc
	x.visits = make([]atomic.Int64, x.nlist)
	x.count.Store(total)
	x.built.Store(true)

	x.logger.DebugContext(ctx, "index deserialized",
		"index_type", x.Type(),
		"version", int(meta.Version),
		"count", total,
		"nlist", x.nlist,
	)
	return nil
}

func (x *IVF) String() string {
	return fmt.Sprintf("%s{dim=%d nlist=%d count=%d metric=%v}", x.Type(), x.dim, x.nlist, x.Count(), x.metric)
}
