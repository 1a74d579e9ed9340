package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alwayslove2013/knowhere"
	"github.com/alwayslove2013/knowhere/blobstore"
	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/persistence"
)

var (
	inspectVerify bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect NAME",
	Short: "Print the sections of a dump",
	Long: `Print the header and section table of a dump. With --verify every
section is read, decompressed and checked against its CRC32-C, and the
index metadata is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectVerify, "verify", false, "read and checksum every section")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := openStore(ctx, storeURI)
	if err != nil {
		return err
	}
	b, err := store.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	r, err := blobstore.NewReader(ctx, b)
	if err != nil {
		return err
	}
	hdr, sections, err := persistence.ReadHeader(r)
	_ = r.Close()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: format v%d, %d sections, %s\n", args[0], hdr.Version, hdr.Sections, humanize.IBytes(uint64(b.Size())))
	printSections(out, sections)

	if !inspectVerify {
		return nil
	}
	bs, err := knowhere.LoadFrom(ctx, store, args[0], persistence.Options{Resources: newController()})
	if err != nil {
		return err
	}
	meta, err := bs.Require(index.SectionMeta)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "checksums ok\nmeta: %s\n", meta)
	return nil
}

func printSections(w io.Writer, sections []persistence.SectionHeader) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Section", "Compression", "Raw", "Stored", "Ratio", "CRC32C"})
	for _, s := range sections {
		ratio := 1.0
		if s.StoredLen > 0 {
			ratio = float64(s.RawLen) / float64(s.StoredLen)
		}
		tw.Append([]string{
			s.Name,
			s.Compression.String(),
			humanize.IBytes(s.RawLen),
			humanize.IBytes(s.StoredLen),
			fmt.Sprintf("%.2fx", ratio),
			fmt.Sprintf("%08x", s.Checksum),
		})
	}
	tw.Render()
}
