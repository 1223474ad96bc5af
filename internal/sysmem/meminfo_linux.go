//go:build linux

package sysmem

import (
	"golang.org/x/sys/unix"

	"github.com/joshuapare/pageheap/internal/format"
)

// TotalRAMPages reports the number of base pages of RAM installed in the
// machine. ok is false when the value cannot be determined.
func TotalRAMPages() (pages int64, ok bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	return int64(total >> format.PageShift), total > 0
}
