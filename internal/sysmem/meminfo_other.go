//go:build !linux && !darwin

package sysmem

// TotalRAMPages is not implemented on this platform; callers must configure
// the total explicitly.
func TotalRAMPages() (pages int64, ok bool) {
	return 0, false
}
