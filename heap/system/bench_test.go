package system

import (
	"testing"

	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/internal/format"
	"github.com/joshuapare/pageheap/internal/testutil"
	"github.com/joshuapare/pageheap/pkg/types"
)

var benchSizes = []struct {
	name string
	size int64
}{
	{"4K", 4 * format.KiB},
	{"64K", 64 * format.KiB},
	{"1M", format.MiB},
	{"4M", 4 * format.MiB},
}

func newBenchHeap(b *testing.B) *Heap {
	b.Helper()
	mem := testutil.SetupArena(b, 8192)
	h, err := New(mem, &Config{SecureCapable: true, NoDirectReclaim: true})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = h.Close() })
	return h
}

// benchmarkCycle allocates and frees req b.N times. When fresh is set every
// buffer bypasses the pools on free, so each allocation goes to the system.
func benchmarkCycle(b *testing.B, req Request, fresh bool) {
	h := newBenchHeap(b)
	b.SetBytes(req.Size)
	b.ReportAllocs()
	for b.Loop() {
		buf, err := h.Allocate(req)
		if err != nil {
			b.Fatal(err)
		}
		if fresh {
			buf.MarkNoCache()
		}
		if err := h.Free(buf); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllocate(b *testing.B) {
	for _, path := range []string{"pooled", "fresh"} {
		b.Run(path, func(b *testing.B) {
			for _, sz := range benchSizes {
				b.Run(sz.name, func(b *testing.B) {
					benchmarkCycle(b, Request{Size: sz.size, Flags: types.FlagCached}, path == "fresh")
				})
			}
		})
	}
}

func BenchmarkAllocateSecure(b *testing.B) {
	for _, path := range []string{"pooled", "fresh"} {
		b.Run(path, func(b *testing.B) {
			for _, sz := range benchSizes[1:3] {
				b.Run(sz.name, func(b *testing.B) {
					benchmarkCycle(b, Request{Size: sz.size, VMID: secure.CPPixel}, path == "fresh")
				})
			}
		})
	}
}

func BenchmarkShrink(b *testing.B) {
	for _, sz := range benchSizes {
		b.Run("pooled/"+sz.name, func(b *testing.B) {
			h := newBenchHeap(b)
			req := Request{Size: sz.size, Flags: types.FlagCached}
			b.ReportAllocs()
			for b.Loop() {
				b.StopTimer()
				buf, err := h.Allocate(req)
				if err != nil {
					b.Fatal(err)
				}
				if err := h.Free(buf); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()
				h.Shrink(physmem.Hint{Kswapd: true}, int(format.BytesToPages(sz.size)))
			}
		})
	}
}
