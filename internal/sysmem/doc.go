// Package sysmem provides the platform-specific backing store for the page
// arena: an anonymous, page-aligned memory region that the buddy allocator in
// heap/physmem carves into page frames, plus a probe for the amount of RAM
// installed in the machine.
//
// On Linux, Darwin and FreeBSD the region is an anonymous private mapping
// (mmap). On Windows it is reserved and committed with VirtualAlloc. Other
// platforms fall back to a Go heap slice.
package sysmem
