package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	arenaPages int64
	orderList  string
	lowWater   int64
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect a tiered page heap",
	Long: `heapctl builds a page heap over an in-process page allocator and runs
allocation scenarios against it: single allocations, warm fill, reclaim
and concurrent stress. Every command prints the resulting pool residency.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML heap configuration file")
	rootCmd.PersistentFlags().Int64Var(&arenaPages, "arena-pages", 0, "Page allocator arena size in pages (0 = from config or RAM)")
	rootCmd.PersistentFlags().StringVar(&orderList, "orders", "", "Comma-separated order table, largest first (e.g. 9,4,0)")
	rootCmd.PersistentFlags().Int64Var(&lowWater, "low-water", -1, "Reclaim floor in pages (-1 = from config)")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger returns the logger handed to the heap: text on stderr, Debug
// with --verbose, Error only with --quiet.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(w io.Writer, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
