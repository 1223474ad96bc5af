// Package sgtable is the descriptor table handed to buffer consumers: an
// ordered scatter list of physically contiguous (address, length) entries.
package sgtable

import (
	"github.com/joshuapare/pageheap/heap/physmem"
	"github.com/joshuapare/pageheap/heap/secure"
	"github.com/joshuapare/pageheap/internal/format"
)

// Entry is one physically contiguous run of pages.
type Entry struct {
	PFN    physmem.PFN
	Addr   uint64 // physical address of the first byte
	Length int64  // bytes; always a whole block
}

// Pages returns the number of base pages the entry covers.
func (e Entry) Pages() int64 { return e.Length >> format.PageShift }

// Table is an ordered scatter list. The zero value is an empty table.
type Table struct {
	entries []Entry
	total   int64
}

// New returns a table with room for n entries.
func New(n int) *Table {
	return &Table{entries: make([]Entry, 0, n)}
}

// Append adds an entry at the end of the table.
func (t *Table) Append(e Entry) {
	t.entries = append(t.entries, e)
	t.total += e.Length
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// At returns entry i.
func (t *Table) At(i int) Entry { return t.entries[i] }

// Entries returns the entries in table order. The slice must not be modified.
func (t *Table) Entries() []Entry { return t.entries }

// TotalLength returns the sum of all entry lengths.
func (t *Table) TotalLength() int64 { return t.total }

// Spans converts the table to authority spans for ownership transfer.
func (t *Table) Spans() []secure.Span {
	spans := make([]secure.Span, len(t.entries))
	for i, e := range t.entries {
		spans[i] = secure.Span{Addr: e.Addr, Len: uint64(e.Length)}
	}
	return spans
}

// Each calls fn for every entry in order, stopping at the first error.
func (t *Table) Each(fn func(i int, e Entry) error) error {
	for i, e := range t.entries {
		if err := fn(i, e); err != nil {
			return err
		}
	}
	return nil
}
