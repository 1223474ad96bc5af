package secure

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joshuapare/pageheap/internal/format"
)

// ErrRejected is returned by Ledger when it refuses a transfer.
var ErrRejected = errors.New("secure: ownership transfer rejected")

// Span is a physically contiguous range handed to the authority.
type Span struct {
	Addr uint64
	Len  uint64
}

// Authority transfers ownership of physical memory between the host and a
// secure VM. Both calls are all-or-nothing: on error no page changed owner.
type Authority interface {
	// Assign hands spans to vmid.
	Assign(vmid VMID, spans []Span) error
	// Unassign returns spans owned by vmid to the host.
	Unassign(vmid VMID, spans []Span) error
}

// Op names an authority operation for fault injection.
type Op int

const (
	OpAssign Op = iota
	OpUnassign
)

func (o Op) String() string {
	if o == OpAssign {
		return "assign"
	}
	return "unassign"
}

// Ledger is an in-memory Authority that tracks ownership per base page.
// It rejects assigning a page that a VM already owns and unassigning a
// page the VM does not own.
type Ledger struct {
	mu     sync.Mutex
	owners map[uint64]VMID // page address -> owner
	fail   map[Op]int      // pending injected failures
	calls  map[Op]int
}

// NewLedger returns an empty ledger: every page is host-owned.
func NewLedger() *Ledger {
	return &Ledger{
		owners: make(map[uint64]VMID),
		fail:   make(map[Op]int),
		calls:  make(map[Op]int),
	}
}

// FailNext makes the next n calls of op fail with ErrRejected.
func (l *Ledger) FailNext(op Op, n int) {
	l.mu.Lock()
	l.fail[op] += n
	l.mu.Unlock()
}

// Calls returns how many times op was invoked, including failures.
func (l *Ledger) Calls(op Op) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// Owner returns the VM owning the page containing addr.
func (l *Ledger) Owner(addr uint64) (VMID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.owners[addr&^uint64(format.PageMask)]
	return v, ok
}

// OwnedPages returns how many pages vmid currently owns.
func (l *Ledger) OwnedPages(vmid VMID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, v := range l.owners {
		if v == vmid {
			n++
		}
	}
	return n
}

// Assign implements Authority.
func (l *Ledger) Assign(vmid VMID, spans []Span) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[OpAssign]++
	if err := l.injected(OpAssign); err != nil {
		return err
	}
	if !Valid(vmid) {
		return fmt.Errorf("%w: %s is not a secure vmid", ErrRejected, vmid)
	}
	var pages []uint64
	for _, s := range spans {
		for addr := s.Addr; addr < s.Addr+s.Len; addr += format.PageSize {
			if owner, ok := l.owners[addr]; ok {
				return fmt.Errorf("%w: page %#x already owned by %s", ErrRejected, addr, owner)
			}
			pages = append(pages, addr)
		}
	}
	for _, p := range pages {
		l.owners[p] = vmid
	}
	return nil
}

// Unassign implements Authority.
func (l *Ledger) Unassign(vmid VMID, spans []Span) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[OpUnassign]++
	if err := l.injected(OpUnassign); err != nil {
		return err
	}
	var pages []uint64
	for _, s := range spans {
		for addr := s.Addr; addr < s.Addr+s.Len; addr += format.PageSize {
			if owner, ok := l.owners[addr]; !ok || owner != vmid {
				return fmt.Errorf("%w: page %#x not owned by %s", ErrRejected, addr, vmid)
			}
			pages = append(pages, addr)
		}
	}
	for _, p := range pages {
		delete(l.owners, p)
	}
	return nil
}

func (l *Ledger) injected(op Op) error {
	if l.fail[op] > 0 {
		l.fail[op]--
		return fmt.Errorf("%w: injected %s failure", ErrRejected, op)
	}
	return nil
}
