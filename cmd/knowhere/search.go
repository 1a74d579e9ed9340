package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alwayslove2013/knowhere"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/persistence"
)

var (
	searchType       string
	searchIn         string
	searchConfigFile string
	searchDataFile   string
	searchQueryFile  string
	searchQueries    int
	searchRows       int
	searchSeed       int64
	searchShow       int
	searchRecall     bool
	searchFlags      configFlags
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Load a dump and search it",
	Long: `Load a dump from the store, run queries against it and print the hits.

With --recall the base vectors are regenerated (same --data, --rows and
--seed as the build) and searched exhaustively to report recall@k.

Examples:
  knowhere search --in ivf.kwbs --queries 10 --k 10 --nprobe 12 --recall
  knowhere search --in ivf.kwbs --query-data queries.fvecs --visited`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringVar(&searchType, "type", knowhere.TypeIVFFlat, "index type of the dump")
	f.StringVar(&searchIn, "in", "index.kwbs", "dump name in the store")
	f.StringVar(&searchConfigFile, "config", "", "YAML or JSON config file")
	f.StringVar(&searchDataFile, "data", "", ".fvecs base vectors for --recall")
	f.StringVar(&searchQueryFile, "query-data", "", ".fvecs queries (random when empty)")
	f.IntVar(&searchQueries, "queries", 10, "number of queries")
	f.IntVar(&searchRows, "rows", 10_000, "base rows used at build time")
	f.Int64Var(&searchSeed, "seed", 1, "seed used at build time")
	f.IntVar(&searchShow, "show", 3, "queries to print")
	f.BoolVar(&searchRecall, "recall", false, "compute recall against exhaustive search")
	searchFlags.register(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rc := newController()
	idx, err := knowhere.CreateIndex(searchType, knowhere.GetCurrentVersion(),
		knowhere.WithLogger(newLogger()),
		knowhere.WithResourceController(rc),
	)
	if err != nil {
		return err
	}
	defer idx.Close()

	store, err := openStore(ctx, storeURI)
	if err != nil {
		return err
	}
	if err := idx.LoadFrom(ctx, store, searchIn, persistence.Options{Resources: rc}); err != nil {
		return err
	}

	cfg, err := loadConfig(searchConfigFile)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("metric") {
		cfg.Metric = idx.Metric()
	}
	if cfg, err = searchFlags.apply(cmd, cfg); err != nil {
		return err
	}

	var queries *index.Dataset
	if searchQueryFile != "" {
		queries, err = loadFvecs(searchQueryFile, searchQueries)
	} else {
		queries, err = randomDataset(searchQueries, idx.Dim(), searchSeed+1)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := idx.Search(ctx, queries, cfg, nil)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Fprintf(out, "searched %d queries in %s (%.0f qps)\n",
		queries.Rows(), elapsed.Round(time.Microsecond), float64(queries.Rows())/elapsed.Seconds())

	printHits(out, res, searchShow)
	if res.Visited != nil {
		if err := printVisited(out, res, searchShow); err != nil {
			return err
		}
	}

	if searchRecall {
		recall, err := computeRecall(cmd, queries, res, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recall@%d: %.4f\n", res.K, recall)
	}
	return nil
}

func printHits(w io.Writer, res *knowhere.Result, show int) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Query", "Rank", "ID", "Distance"})
	for q := 0; q < min(show, res.NQ); q++ {
		for rank, h := range res.Neighbors(q) {
			tw.Append([]string{
				strconv.Itoa(q),
				strconv.Itoa(rank),
				strconv.FormatInt(h.ID, 10),
				strconv.FormatFloat(float64(h.Distance), 'g', 6, 32),
			})
		}
	}
	tw.Render()
}

func printVisited(w io.Writer, res *knowhere.Result, show int) error {
	nprobe := res.Visited.NProbe
	ids, dists, err := knowhere.BucketsInfoToArray(res, nprobe)
	if err != nil {
		return err
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Query", "Order", "Bucket", "Distance"})
	for q := 0; q < min(show, res.NQ); q++ {
		for j := 0; j < nprobe; j++ {
			tw.Append([]string{
				strconv.Itoa(q),
				strconv.Itoa(j),
				strconv.FormatInt(ids[q*nprobe+j], 10),
				strconv.FormatFloat(float64(dists[q*nprobe+j]), 'g', 6, 32),
			})
		}
	}
	tw.Render()
	return nil
}

// computeRecall searches a FLAT index over the base vectors and compares.
func computeRecall(cmd *cobra.Command, queries *index.Dataset, res *knowhere.Result, cfg knowhere.Config) (float64, error) {
	ctx := cmd.Context()
	base, err := dataset(searchDataFile, searchRows, queries.Dim(), searchSeed)
	if err != nil {
		return 0, err
	}

	flat, err := knowhere.CreateIndex(knowhere.TypeFlat, knowhere.GetCurrentVersion(),
		knowhere.WithResourceController(newController()),
	)
	if err != nil {
		return 0, err
	}
	defer flat.Close()

	exact := knowhere.Config{Metric: cfg.Metric, K: res.K}
	if err := flat.Build(ctx, base, exact); err != nil {
		return 0, err
	}
	truth, err := flat.Search(ctx, queries, exact, nil)
	if err != nil {
		return 0, err
	}

	var hit, want int
	for q := 0; q < res.NQ; q++ {
		expected := map[int64]bool{}
		for _, h := range truth.Neighbors(q) {
			expected[h.ID] = true
		}
		want += len(expected)
		for _, h := range res.Neighbors(q) {
			if expected[h.ID] {
				hit++
			}
		}
	}
	if want == 0 {
		return 0, nil
	}
	return float64(hit) / float64(want), nil
}
