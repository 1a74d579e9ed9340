package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alwayslove2013/knowhere"
	"github.com/alwayslove2013/knowhere/internal/compress"
	"github.com/alwayslove2013/knowhere/persistence"
)

var (
	buildType        string
	buildConfigFile  string
	buildDataFile    string
	buildOut         string
	buildCompression string
	buildStatsFile   string
	buildRows        int
	buildDim         int
	buildSeed        int64
	buildTop         int
	buildFlags       configFlags
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an index and dump it to the store",
	Long: `Build an index from an .fvecs file or random vectors and write it to the
store as a dump.

Examples:
  knowhere build --type IVF_FLAT --nlist 66 --rows 10000 --dim 128 --out ivf.kwbs
  knowhere build --config ivf.yaml --data sift_base.fvecs --compression zstd
  knowhere build --store s3://my-bucket/indexes --out sift.kwbs --stats-file stats.csv`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	f := buildCmd.Flags()
	f.StringVar(&buildType, "type", knowhere.TypeIVFFlat, "index type")
	f.StringVar(&buildConfigFile, "config", "", "YAML or JSON config file")
	f.StringVar(&buildDataFile, "data", "", ".fvecs file (random vectors when empty)")
	f.StringVar(&buildOut, "out", "index.kwbs", "dump name in the store")
	f.StringVar(&buildCompression, "compression", "none", "dump compression (none, lz4, zstd)")
	f.StringVar(&buildStatsFile, "stats-file", "", "write bucket statistics CSV to this path")
	f.IntVar(&buildRows, "rows", 10_000, "rows to generate or read (0 reads all)")
	f.IntVar(&buildDim, "dim", 128, "dimension of random vectors")
	f.Int64Var(&buildSeed, "seed", 1, "seed for random vectors")
	f.IntVar(&buildTop, "top", 10, "largest buckets to print")
	buildFlags.register(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(buildConfigFile)
	if err != nil {
		return err
	}
	if cfg, err = buildFlags.apply(cmd, cfg); err != nil {
		return err
	}
	if buildStatsFile != "" {
		cfg.RecordBucketStats = true
		cfg.BucketStatsFile = buildStatsFile
	}
	comp, err := compress.Parse(buildCompression)
	if err != nil {
		return err
	}

	ds, err := dataset(buildDataFile, buildRows, buildDim, buildSeed)
	if err != nil {
		return err
	}

	rc := newController()
	idx, err := knowhere.CreateIndex(buildType, knowhere.GetCurrentVersion(),
		knowhere.WithLogger(newLogger()),
		knowhere.WithResourceController(rc),
	)
	if err != nil {
		return err
	}
	defer idx.Close()

	start := time.Now()
	if err := idx.Build(ctx, ds, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "built %s: %s vectors, dim %d, %s in memory, %s\n",
		idx.Type(), humanize.Comma(idx.Count()), idx.Dim(), humanize.IBytes(uint64(idx.Size())),
		time.Since(start).Round(time.Millisecond))

	store, err := openStore(ctx, storeURI)
	if err != nil {
		return err
	}
	if err := idx.DumpTo(ctx, store, buildOut, persistence.Options{Compression: comp, Resources: rc}); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s to %s\n", buildOut, storeURI)

	if stats, err := idx.BucketStats(); err == nil {
		printBucketStats(out, stats, idx.Count(), buildTop)
	}
	return nil
}

// printBucketStats renders the top largest buckets.
func printBucketStats(w io.Writer, stats []knowhere.BucketStat, total int64, top int) {
	sorted := slices.Clone(stats)
	slices.SortStableFunc(sorted, func(a, b knowhere.BucketStat) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if top > 0 && len(sorted) > top {
		sorted = sorted[:top]
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Bucket", "Vectors", "Fraction", "Visits"})
	for _, s := range sorted {
		var frac float64
		if total > 0 {
			frac = float64(s.Count) / float64(total)
		}
		tw.Append([]string{
			strconv.FormatInt(s.Bucket, 10),
			humanize.Comma(s.Count),
			fmt.Sprintf("%.4f", frac),
			humanize.Comma(s.Visits),
		})
	}
	tw.Render()
}
