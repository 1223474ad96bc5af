//go:build darwin

package sysmem

import (
	"golang.org/x/sys/unix"

	"github.com/joshuapare/pageheap/internal/format"
)

// TotalRAMPages reports the number of base pages of RAM installed in the
// machine. ok is false when the value cannot be determined.
func TotalRAMPages() (pages int64, ok bool) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil || total == 0 {
		return 0, false
	}
	return int64(total >> format.PageShift), true
}
