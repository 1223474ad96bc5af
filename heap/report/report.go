// Package report renders heap statistics for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/pageheap/heap/system"
	"github.com/joshuapare/pageheap/internal/format"
)

// Options controls text rendering.
type Options struct {
	// Empty includes pools that hold no blocks.
	Empty bool
	// Tag selects number formatting. The zero value means English.
	Tag language.Tag
}

// WriteText writes a human-readable summary of st to w.
func WriteText(w io.Writer, st system.Stats, opts Options) error {
	tag := opts.Tag
	if tag == language.Und {
		tag = language.English
	}
	p := message.NewPrinter(tag)

	var b strings.Builder
	p.Fprintf(&b, "Pooled:    %d pages (%s)\n", st.CachedPages, Bytes(format.PagesToBytes(st.CachedPages)))
	p.Fprintf(&b, "In use:    %d pages (%s)\n", st.InUsePages, Bytes(format.PagesToBytes(st.InUsePages)))
	p.Fprintf(&b, "Low water: %d pages\n", st.LowWaterPages)
	p.Fprintf(&b, "System:    %d of %d pages free\n", st.Memory.FreePages, st.Memory.TotalPages)
	if st.Memory.Reclaims > 0 {
		p.Fprintf(&b, "Reclaim:   %d passes, %d pages\n", st.Memory.Reclaims, st.Memory.Reclaimed)
	}
	if st.NodeSpills > 0 {
		p.Fprintf(&b, "Spilled tracking nodes: %d\n", st.NodeSpills)
	}

	b.WriteString("\nPools:\n")
	p.Fprintf(&b, "  %-22s %5s %10s %10s %12s\n", "DOMAIN", "ORDER", "HIGH", "LOW", "PAGES")
	for _, ps := range st.Pools {
		if !opts.Empty && ps.HighBlocks+ps.LowBlocks == 0 {
			continue
		}
		p.Fprintf(&b, "  %-22s %5d %10d %10d %12d\n", ps.Domain, ps.Order, ps.HighBlocks, ps.LowBlocks, ps.Pages)
	}

	if len(st.Tiers) > 0 {
		b.WriteString("\nTiers:\n")
		for _, t := range st.Tiers {
			p.Fprintf(&b, "  %-22s %d pages\n", t.Name, t.Pages)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes st to w as indented JSON.
func WriteJSON(w io.Writer, st system.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// Bytes formats n with a binary unit.
func Bytes(n int64) string {
	switch {
	case n >= format.GiB:
		return fmt.Sprintf("%.1f GiB", float64(n)/format.GiB)
	case n >= format.MiB:
		return fmt.Sprintf("%.1f MiB", float64(n)/format.MiB)
	case n >= format.KiB:
		return fmt.Sprintf("%.1f KiB", float64(n)/format.KiB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
