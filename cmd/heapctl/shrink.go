package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/report"
	"github.com/joshuapare/pageheap/heap/system"
)

var (
	shrinkScan    int
	shrinkHighmem bool
	shrinkWarm    int64
)

func init() {
	cmd := newShrinkCmd()
	cmd.Flags().IntVar(&shrinkScan, "scan", 0, "Pages to release (0 = report what could be released)")
	cmd.Flags().BoolVar(&shrinkHighmem, "highmem", false, "Allow releasing highmem blocks")
	cmd.Flags().Int64Var(&shrinkWarm, "warm", 0, "Warm-fill target in pages before shrinking (0 = configured size)")
	rootCmd.AddCommand(cmd)
}

func newShrinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shrink",
		Short: "Warm-fill the pools, then run the reclaimer",
		Long: `The shrink command fills the pools and then asks the reclaimer to release
pages, as the system would under memory pressure. The reclaimer never takes
the pools below the low-water mark.

Example:
  heapctl shrink                 # probe only
  heapctl shrink --scan 4096
  heapctl shrink --scan 100000 --low-water 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShrink(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type shrinkResult struct {
	Requested int          `json:"requested"`
	Eligible  int          `json:"eligible"`
	Freed     int          `json:"freed"`
	Before    int64        `json:"cached_before"`
	Stats     system.Stats `json:"stats"`
}

func runShrink(ctx context.Context, w io.Writer) error {
	e, err := buildEnv(newLogger())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.heap.Fill(ctx, shrinkWarm); err != nil {
		return err
	}
	hint := physmem.Hint{Highmem: shrinkHighmem}
	res := shrinkResult{
		Requested: shrinkScan,
		Before:    e.heap.Counters().Cached(),
		Eligible:  e.heap.Shrink(hint, 0),
	}
	if shrinkScan > 0 {
		res.Freed = e.heap.Shrink(hint, shrinkScan)
	}
	res.Stats = e.heap.Stats()

	if jsonOut {
		return printJSON(w, res)
	}
	printInfo(w, "pooled before: %d pages\n", res.Before)
	printInfo(w, "eligible:      %d pages\n", res.Eligible)
	if shrinkScan > 0 {
		printInfo(w, "released:      %d of %d requested pages\n", res.Freed, res.Requested)
	}
	printInfo(w, "\n")
	return report.WriteText(w, res.Stats, report.Options{})
}
