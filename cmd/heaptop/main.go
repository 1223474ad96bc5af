package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshuapare/pageheap/cmd/heaptop/logger"
	"github.com/joshuapare/pageheap/internal/format"
)

func main() {
	args := os.Args[1:]
	debugMode := false

	// Extract --debug/-d flag
	filteredArgs := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--debug" || arg == "-d" {
			debugMode = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	// Initialize logger (must be before any logging calls)
	if err := logger.Init(logger.Options{
		Enabled: debugMode,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	if len(filteredArgs) > 0 {
		switch filteredArgs[0] {
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("heaptop %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built: %s\n", date)
			os.Exit(0)
		}
	}

	opts, err := parseArgs(filteredArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	logger.BeginSession(opts.ArenaPages, opts.Workload.Workers, time.Now())
	opts.Logger = logger.L
	logger.Info("starting heaptop", "arena_pages", opts.ArenaPages, "workers", opts.Workload.Workers, "debug", debugMode)

	sess, err := newSession(opts)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sess.Start(context.Background())

	p := tea.NewProgram(NewModel(sess), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		logger.Error("TUI error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		_ = sess.Close()
		os.Exit(1)
	}

	if model, ok := finalModel.(Model); ok {
		if err := model.Close(); err != nil {
			logger.Warn("error closing session", "error", err)
		}
	}

	logger.Info("heaptop exited normally")
}

// parseArgs reads --name=value options.
func parseArgs(args []string) (sessionOptions, error) {
	opts := sessionOptions{Workload: defaultWorkloadOptions()}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return opts, fmt.Errorf("unexpected argument %q", arg)
		}
		var err error
		switch name {
		case "--arena-pages":
			opts.ArenaPages, err = strconv.ParseInt(value, 10, 64)
		case "--workers":
			opts.Workload.Workers, err = strconv.Atoi(value)
		case "--hold":
			opts.Workload.Hold, err = strconv.Atoi(value)
		case "--max-pages":
			var n int64
			n, err = strconv.ParseInt(value, 10, 64)
			opts.Workload.MaxBytes = format.PagesToBytes(n)
		case "--secure-ratio":
			opts.Workload.SecureRatio, err = strconv.ParseFloat(value, 64)
		case "--seed":
			opts.Workload.Seed, err = strconv.ParseUint(value, 10, 64)
		default:
			return opts, fmt.Errorf("unknown option %s", name)
		}
		if err != nil {
			return opts, fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}
	return opts, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: heaptop [options]\n")
	fmt.Fprintf(os.Stderr, "Try 'heaptop --help' for more information.\n")
}

func printHelp() {
	fmt.Println("heaptop - Live view of page heap pool residency")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  heaptop [options]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs a synthetic allocate/free workload against a private page heap and")
	fmt.Println("  shows how its pools fill, drain and respond to reclaim.")
	fmt.Println()
	fmt.Println("  Keys:")
	fmt.Println("    ↑/k, ↓/j    Scroll the pool table")
	fmt.Println("    p, space    Pause or resume the workload")
	fmt.Println("    f           Warm fill the pools")
	fmt.Println("    s / S       Shrink a quarter / everything above low water")
	fmt.Println("    c           Copy the text report to the clipboard")
	fmt.Println("    ?           Show help")
	fmt.Println("    q           Quit")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --arena-pages=N     Arena size in pages (default: derived from RAM)")
	fmt.Println("  --workers=N         Workload goroutines (default: 4)")
	fmt.Println("  --hold=N            Buffers each worker keeps live (default: 8)")
	fmt.Println("  --max-pages=N       Largest request in pages (default: 512)")
	fmt.Println("  --secure-ratio=F    Fraction of requests for a secure VM (default: 0)")
	fmt.Println("  --seed=N            Random seed (default: 1)")
	fmt.Println("  -d, --debug         Enable debug logging to ~/.heaptop/logs/")
	fmt.Println("  -h, --help          Show this help message")
	fmt.Println("  -v, --version       Show version information")
	fmt.Println()
	fmt.Println("For scripted operations, use the 'heapctl' command instead.")
}
