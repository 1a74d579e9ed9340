package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alwayslove2013/knowhere"
	"github.com/alwayslove2013/knowhere/resource"
)

var (
	storeURI      string
	logLevel      string
	buildThreads  int
	searchThreads int
	ioLimit       int64
)

var rootCmd = &cobra.Command{
	Use:   "knowhere",
	Short: "Build, search and inspect vector index dumps",
	Long: `knowhere builds FLAT and IVF vector indexes, stores them as dumps in a
blob store and searches or inspects them.

Stores:
  file://DIR                      local directory (default: file://.)
  mem://                          in-memory, for dry runs
  s3://BUCKET/PREFIX              Amazon S3 (AWS default credential chain)
  minio://HOST:PORT/BUCKET/PREFIX MinIO (MINIO_ACCESS_KEY, MINIO_SECRET_KEY)`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&storeURI, "store", "file://.", "blob store URI")
	pf.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.IntVar(&buildThreads, "build-threads", 0, "build workers (0 = GOMAXPROCS)")
	pf.IntVar(&searchThreads, "search-threads", 0, "search workers (0 = GOMAXPROCS)")
	pf.Int64Var(&ioLimit, "io-limit", 0, "dump/load throughput limit in bytes per second (0 = unlimited)")
}

func newLogger() *knowhere.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelWarn
	}
	return knowhere.NewTextLogger(level)
}

func newController() *resource.Controller {
	return resource.NewController(resource.Config{
		BuildThreads:       buildThreads,
		SearchThreads:      searchThreads,
		IOLimitBytesPerSec: ioLimit,
	})
}
