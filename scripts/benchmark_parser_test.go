package main

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleOutput = `goos: linux
BenchmarkAllocate/pooled/64K-8         	  500000	      2000 ns/op	32768.00 MB/s	      96 B/op	       2 allocs/op
BenchmarkAllocate/fresh/64K-8          	  100000	      8000 ns/op	 8192.00 MB/s	     128 B/op	       3 allocs/op
BenchmarkAllocate/pooled/4K-8          	 1000000	      1000 ns/op	 4096.00 MB/s	      64 B/op	       1 allocs/op
{"Action":"output","Output":"BenchmarkAllocate/fresh/4K-8 \t 1000000\t 500 ns/op\t 8192.00 MB/s\t 64 B/op\t 1 allocs/op\n"}
BenchmarkShrink/pooled/1M-8            	   20000	     60000 ns/op	     512 B/op	       4 allocs/op
BenchmarkUnrelated-8                   	     100	       10 ns/op
PASS`

func TestParseBenchmarks(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	require.Len(t, results, 5)

	first := results[0]
	require.Equal(t, "Allocate", first.Operation)
	require.Equal(t, "pooled", first.Path)
	require.Equal(t, "64K", first.Size)
	require.Equal(t, 500000, first.Iterations)
	require.InDelta(t, 2000, first.NsPerOp, 1e-9)
	require.InDelta(t, 32768, first.MBPerSec, 1e-9)
	require.Equal(t, int64(96), first.BytesPerOp)
	require.Equal(t, int64(2), first.AllocsPerOp)

	// The -json event line is unwrapped.
	require.Equal(t, "fresh", results[3].Path)
	require.Equal(t, "4K", results[3].Size)

	require.Zero(t, results[4].MBPerSec)
	require.Equal(t, int64(4), results[4].AllocsPerOp)
}

func TestGenerateComparisons(t *testing.T) {
	comps := generateComparisons(parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput))))
	require.Len(t, comps, 3)

	require.Equal(t, "4K", comps[0].Size)
	require.InDelta(t, 0.5, comps[0].Speedup, 1e-9)
	require.Equal(t, "64K", comps[1].Size)
	require.InDelta(t, 4.0, comps[1].Speedup, 1e-9)
	require.Equal(t, "Shrink", comps[2].Operation)
	require.True(t, comps[2].PooledOnly)
}

func TestGenerateMarkdownReport(t *testing.T) {
	comps := generateComparisons(parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput))))
	report := generateMarkdownReport(comps, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	require.Contains(t, report, "Generated: 2026-01-02 03:04:05")
	require.Contains(t, report, "- **Comparable** (pooled and fresh): 2")
	require.Contains(t, report, "  - pooled faster: 1 (50.0%)")
	require.Contains(t, report, "| Allocate | 64K | 2.0K | 8.0K | **4.00x** ✓ | 32.0 GB/s | 2 vs 3 |")
	require.Contains(t, report, "| Allocate | 4K | 1.0K | 500 | 0.50x ✗ |")
	require.Contains(t, report, "| Shrink | 1M | 60.0K | *N/A* | *pooled only* | - | 4 |")
}
