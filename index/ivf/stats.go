package ivf

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/alwayslove2013/knowhere/index"
)

var statsFileMu sync.Mutex

// BucketStats returns the population and probe count of every bucket.
func (x *IVF) BucketStats() []index.BucketStat {
	if !x.IsBuilt() {
		return nil
	}
	return x.bucketStats()
}

func (x *IVF) bucketStats() []index.BucketStat {
	out := make([]index.BucketStat, x.nlist)
	for i, l := range x.lists {
		out[i] = index.BucketStat{
			Bucket: int64(i),
			Count:  int64(l.len()),
			Visits: x.visits[i].Load(),
		}
	}
	return out
}

// ResetBucketVisits zeroes the probe counters.
func (x *IVF) ResetBucketVisits() {
	for i := range x.visits {
		x.visits[i].Store(0)
	}
}

// writeBucketStats writes the bucket statistics as CSV to path. The file is
// replaced atomically. An empty path only logs a summary.
func (x *IVF) writeBucketStats(ctx context.Context, path string) error {
	stats := x.bucketStats()

	var largest, empty int64
	total := x.Count()
	for _, s := range stats {
		largest = max(largest, s.Count)
		if s.Count == 0 {
			empty++
		}
	}
	x.logger.DebugContext(ctx, "bucket stats",
		"nlist", x.nlist,
		"vectors", total,
		"largest_bucket", largest,
		"empty_buckets", empty,
		"file", path,
	)
	if path == "" {
		return nil
	}

	statsFileMu.Lock()
	defer statsFileMu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("bucket stats: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write([]string{"bucket_id", "num_vectors", "fraction", "visits"})
	for _, s := range stats {
		fraction := 0.0
		if total > 0 {
			fraction = float64(s.Count) / float64(total)
		}
		_ = w.Write([]string{
			strconv.FormatInt(s.Bucket, 10),
			strconv.FormatInt(s.Count, 10),
			strconv.FormatFloat(fraction, 'f', 6, 64),
			strconv.FormatInt(s.Visits, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("bucket stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bucket stats: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("bucket stats: %w", err)
	}
	return nil
}
