package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alwayslove2013/knowhere/distance"
	"github.com/alwayslove2013/knowhere/index"
)

// loadConfig reads a YAML or JSON config file. An empty path yields the zero config.
func loadConfig(path string) (index.Config, error) {
	if path == "" {
		return index.Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return index.Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return index.ParseYAMLConfig(data)
	default:
		return index.ParseConfig(data)
	}
}

// configFlags are index settings that override the config file when set.
type configFlags struct {
	metric  string
	nlist   int
	nprobe  int
	k       int
	ssize   int
	seed    int64
	visited bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.metric, "metric", "L2", "metric type (L2, IP, COSINE)")
	fs.IntVar(&f.nlist, "nlist", 0, "number of buckets")
	fs.IntVar(&f.nprobe, "nprobe", 0, "buckets probed per query")
	fs.IntVar(&f.k, "k", 0, "neighbors per query")
	fs.IntVar(&f.ssize, "ssize", 0, "IVF_FLAT_CC chunk size")
	fs.Int64Var(&f.seed, "kmeans-seed", 0, "k-means seed")
	fs.BoolVar(&f.visited, "visited", false, "report visited buckets")
}

func (f *configFlags) apply(cmd *cobra.Command, cfg index.Config) (index.Config, error) {
	fs := cmd.Flags()
	if fs.Changed("metric") {
		m, err := distance.ParseMetric(f.metric)
		if err != nil {
			return cfg, &index.ConfigError{Key: "metric_type", Reason: err.Error()}
		}
		cfg.Metric = m
	}
	if fs.Changed("nlist") {
		cfg.NList = f.nlist
	}
	if fs.Changed("nprobe") {
		cfg.NProbe = f.nprobe
	}
	if fs.Changed("k") {
		cfg.K = f.k
	}
	if fs.Changed("ssize") {
		cfg.SSize = f.ssize
	}
	if fs.Changed("kmeans-seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("visited") {
		cfg.ReturnVisitedBuckets = f.visited
	}
	return cfg, cfg.Validate()
}
