package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Size        string
	Path        string // "pooled" or "fresh"
	Iterations  int
	NsPerOp     float64
	MBPerSec    float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult compares the pooled and fresh paths of one operation.
type ComparisonResult struct {
	Operation    string
	Size         string
	PooledNs     float64
	FreshNs      float64
	Speedup      float64
	PooledMBs    float64
	PooledAllocs int64
	FreshAllocs  int64
	PooledOnly   bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkAllocate/pooled/64K-8   500000   2450 ns/op   26749.12 MB/s   96 B/op   2 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+MB/s)?(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// go test -json wraps each output line in an event.
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		r := BenchmarkResult{Name: matches[1]}
		r.Iterations, _ = strconv.Atoi(matches[2])
		r.NsPerOp, _ = strconv.ParseFloat(matches[3], 64)
		if matches[4] != "" {
			r.MBPerSec, _ = strconv.ParseFloat(matches[4], 64)
		}
		if matches[5] != "" {
			r.BytesPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}
		if matches[6] != "" {
			r.AllocsPerOp, _ = strconv.ParseInt(matches[6], 10, 64)
		}
		r.Operation, r.Path, r.Size = splitName(r.Name)
		if r.Operation == "" {
			continue
		}
		results = append(results, r)
	}

	return results
}

// splitName parses Benchmark<Operation>/<path>/<size>-<procs>.
func splitName(name string) (operation, path, size string) {
	parts := strings.Split(name, "/")
	if len(parts) < 3 {
		return "", "", ""
	}
	operation = strings.TrimPrefix(parts[0], "Benchmark")
	path = parts[1]

	size = parts[len(parts)-1]
	if dashIdx := strings.LastIndex(size, "-"); dashIdx > 0 {
		size = size[:dashIdx]
	}
	return operation, path, size
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	type key struct {
		operation string
		size      string
	}

	grouped := make(map[key]map[string]BenchmarkResult)
	for _, result := range results {
		k := key{result.Operation, result.Size}
		if grouped[k] == nil {
			grouped[k] = make(map[string]BenchmarkResult)
		}
		grouped[k][result.Path] = result
	}

	var comparisons []ComparisonResult
	for k, paths := range grouped {
		pooled, hasPooled := paths["pooled"]
		if !hasPooled {
			continue
		}
		c := ComparisonResult{
			Operation:    k.operation,
			Size:         k.size,
			PooledNs:     pooled.NsPerOp,
			PooledMBs:    pooled.MBPerSec,
			PooledAllocs: pooled.AllocsPerOp,
			PooledOnly:   true,
		}
		if fresh, ok := paths["fresh"]; ok && pooled.NsPerOp > 0 {
			c.FreshNs = fresh.NsPerOp
			c.FreshAllocs = fresh.AllocsPerOp
			c.Speedup = fresh.NsPerOp / pooled.NsPerOp
			c.PooledOnly = false
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Operation != comparisons[j].Operation {
			return comparisons[i].Operation < comparisons[j].Operation
		}
		return sizeBytes(comparisons[i].Size) < sizeBytes(comparisons[j].Size)
	})

	return comparisons
}

// sizeBytes orders size labels such as 4K and 1M numerically.
func sizeBytes(label string) int64 {
	mult := int64(1)
	switch {
	case strings.HasSuffix(label, "K"):
		mult = 1 << 10
	case strings.HasSuffix(label, "M"):
		mult = 1 << 20
	case strings.HasSuffix(label, "G"):
		mult = 1 << 30
	}
	n, err := strconv.ParseInt(strings.TrimRight(label, "KMG"), 10, 64)
	if err != nil {
		return 0
	}
	return n * mult
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Pool Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format("2006-01-02 15:04:05")))

	pooledFaster := 0
	comparable := 0
	totalSpeedup := 0.0
	for _, comp := range comparisons {
		if comp.PooledOnly {
			continue
		}
		comparable++
		totalSpeedup += comp.Speedup
		if comp.Speedup > 1.0 {
			pooledFaster++
		}
	}
	avgSpeedup := 0.0
	if comparable > 0 {
		avgSpeedup = totalSpeedup / float64(comparable)
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total benchmarks**: %d\n", len(comparisons)))
	sb.WriteString(fmt.Sprintf("- **Comparable** (pooled and fresh): %d\n", comparable))
	if comparable > 0 {
		sb.WriteString(fmt.Sprintf("  - pooled faster: %d (%.1f%%)\n",
			pooledFaster, float64(pooledFaster)/float64(comparable)*100))
		sb.WriteString(fmt.Sprintf("  - Average speedup: **%.2fx**\n", avgSpeedup))
	}
	sb.WriteString("\n")

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | Size | pooled (ns/op) | fresh (ns/op) | Speedup | Throughput | Allocs |\n")
	sb.WriteString("|-----------|------|----------------|---------------|---------|------------|--------|\n")
	for _, comp := range comparisons {
		if comp.PooledOnly {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | *N/A* | *pooled only* | %s | %s |\n",
				comp.Operation,
				comp.Size,
				formatNumber(comp.PooledNs),
				formatThroughput(comp.PooledMBs),
				formatNumber(float64(comp.PooledAllocs)),
			))
			continue
		}
		indicator := "✓"
		speedupStyle := "**"
		if comp.Speedup < 1.0 {
			indicator = "✗"
			speedupStyle = ""
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s%.2fx%s %s | %s | %s vs %s |\n",
			comp.Operation,
			comp.Size,
			formatNumber(comp.PooledNs),
			formatNumber(comp.FreshNs),
			speedupStyle,
			comp.Speedup,
			speedupStyle,
			indicator,
			formatThroughput(comp.PooledMBs),
			formatNumber(float64(comp.PooledAllocs)),
			formatNumber(float64(comp.FreshAllocs)),
		))
	}
	sb.WriteString("\n")

	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **pooled**: buffers are freed back to the page pools and reused\n")
	sb.WriteString("- **fresh**: buffers bypass the pools, so every allocation hits the page allocator\n")
	sb.WriteString("- **Speedup > 1.0**: the pooled path is faster ✓\n")
	sb.WriteString("- **Allocations**: Go heap allocations per operation, fewer is better\n")

	return sb.String()
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}

func formatThroughput(mbs float64) string {
	if mbs == 0 {
		return "-"
	}
	if mbs >= 1024 {
		return fmt.Sprintf("%.1f GB/s", mbs/1024)
	}
	return fmt.Sprintf("%.0f MB/s", mbs)
}
