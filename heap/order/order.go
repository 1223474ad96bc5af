// Package order defines the order table: the fixed, strictly descending set
// of block sizes the heap decomposes requests into.
//
// An order is a log2 multiplier of the base page size. A block of order o
// spans 2^o pages, so with 4 KiB pages the default table {9, 4, 0} serves
// 2 MiB, 64 KiB and 4 KiB blocks.
package order

import (
	"fmt"
	"strings"

	"github.com/joshuapare/pageheap/internal/format"
)

// Order is a block size exponent: a block of order o spans 2^o base pages.
type Order uint

// Pages returns the number of base pages in a block of order o.
func (o Order) Pages() int64 { return format.OrderPages(uint(o)) }

// Bytes returns the byte size of a block of order o.
func (o Order) Bytes() int64 { return format.OrderBytes(uint(o)) }

// Table is an immutable, strictly descending list of allowed orders.
type Table struct {
	orders []Order
	index  [format.MaxOrder + 1]int8 // order -> position, -1 when absent
}

// New builds a table from orders, which must be non-empty, strictly
// descending, and no larger than format.MaxOrder.
func New(orders ...Order) (*Table, error) {
	if len(orders) == 0 {
		return nil, fmt.Errorf("order: empty table")
	}
	t := &Table{orders: make([]Order, len(orders))}
	for i := range t.index {
		t.index[i] = -1
	}
	for i, o := range orders {
		if o > format.MaxOrder {
			return nil, fmt.Errorf("order: %d exceeds max order %d", o, format.MaxOrder)
		}
		if i > 0 && o >= orders[i-1] {
			return nil, fmt.Errorf("order: table must be strictly descending, got %d after %d", o, orders[i-1])
		}
		t.orders[i] = o
		t.index[o] = int8(i)
	}
	return t, nil
}

// Default returns the standard table {9, 4, 0}.
func Default() *Table {
	t, err := New(9, 4, 0)
	if err != nil {
		panic(err)
	}
	return t
}

// MustNew is like New but panics on an invalid table.
func MustNew(orders ...Order) *Table {
	t, err := New(orders...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of orders in the table.
func (t *Table) Len() int { return len(t.orders) }

// At returns the order at position i (0 is the largest).
func (t *Table) At(i int) Order { return t.orders[i] }

// Max returns the largest order.
func (t *Table) Max() Order { return t.orders[0] }

// Min returns the smallest order.
func (t *Table) Min() Order { return t.orders[len(t.orders)-1] }

// Orders returns a copy of the table, largest first.
func (t *Table) Orders() []Order {
	out := make([]Order, len(t.orders))
	copy(out, t.orders)
	return out
}

// Contains reports whether o is an allowed order.
func (t *Table) Contains(o Order) bool {
	return o <= format.MaxOrder && t.index[o] >= 0
}

// Index returns the table position of o.
//
// An order outside the table is a programming error: continuing with a
// bogus index would corrupt pool bookkeeping, so Index panics.
func (t *Table) Index(o Order) int {
	if !t.Contains(o) {
		panic(fmt.Sprintf("order: %d is not in table %s", o, t))
	}
	return int(t.index[o])
}

// Largest returns the largest allowed order o with o <= ceiling and
// o.Bytes() <= remaining. ok is false when no order qualifies.
func (t *Table) Largest(remaining int64, ceiling Order) (o Order, ok bool) {
	for _, o := range t.orders {
		if o > ceiling || o.Bytes() > remaining {
			continue
		}
		return o, true
	}
	return 0, false
}

// Fits returns, largest first, every order o with o <= ceiling and
// o.Bytes() <= remaining.
func (t *Table) Fits(remaining int64, ceiling Order) []Order {
	var out []Order
	for _, o := range t.orders {
		if o > ceiling || o.Bytes() > remaining {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (t *Table) String() string {
	parts := make([]string, len(t.orders))
	for i, o := range t.orders {
		parts[i] = fmt.Sprint(uint(o))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
