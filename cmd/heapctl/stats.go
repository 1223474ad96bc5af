package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/joshuapare/pageheap/heap/report"
)

var (
	statsFill   bool
	statsEmpty  bool
	statsLocale string
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().BoolVar(&statsFill, "fill", false, "Warm-fill the pools first")
	cmd.Flags().BoolVar(&statsEmpty, "empty", false, "Include pools that hold no blocks")
	cmd.Flags().StringVar(&statsLocale, "locale", "en", "Locale for number formatting")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show heap configuration and pool residency",
		Long: `The stats command builds the configured heap and prints its pools,
counters and page allocator state.

Example:
  heapctl stats
  heapctl stats --fill --empty
  heapctl stats --config heap.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStats(ctx context.Context, w io.Writer) error {
	tag, err := language.Parse(statsLocale)
	if err != nil {
		return err
	}
	e, err := buildEnv(newLogger())
	if err != nil {
		return err
	}
	defer e.Close()

	if statsFill {
		if err := e.heap.Fill(ctx, 0); err != nil {
			return err
		}
	}
	st := e.heap.Stats()
	if jsonOut {
		return printJSON(w, st)
	}
	printVerbose(w, "orders: %s\n", e.heap.Orders())
	return report.WriteText(w, st, report.Options{Empty: statsEmpty, Tag: tag})
}
