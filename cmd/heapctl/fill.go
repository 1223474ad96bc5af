package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/internal/format"
)

var fillTarget int64

func init() {
	cmd := newFillCmd()
	cmd.Flags().Int64Var(&fillTarget, "target", 0, "Cached-pool target in pages (0 = configured warm-fill size)")
	rootCmd.AddCommand(cmd)
}

func newFillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fill",
		Short: "Warm-fill the pools",
		Long: `The fill command pre-populates the cached pools up to the target and the
uncached pools up to twice the target, largest order first.

Example:
  heapctl fill
  heapctl fill --target 4096 --arena-pages 65536`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runFill(ctx context.Context, w io.Writer) error {
	e, err := buildEnv(newLogger())
	if err != nil {
		return err
	}
	defer e.Close()

	start := time.Now()
	if err := e.heap.Fill(ctx, fillTarget); err != nil {
		return err
	}
	st := e.heap.Stats()
	if jsonOut {
		return printJSON(w, st)
	}
	printInfo(w, "filled %d pages (%s) in %s\n\n",
		st.CachedPages, report.Bytes(format.PagesToBytes(st.CachedPages)), time.Since(start).Round(time.Microsecond))
	return report.WriteText(w, st, report.Options{})
}
