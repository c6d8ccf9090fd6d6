//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// Preallocate reserves length bytes of the output starting at offset without
// changing its visible size. Errors are ignored as fallocate is not
// supported on all filesystems.
//
//nolint:gosec // G115: fd values are small non-negative integers
func Preallocate(fd *os.File, offset, length int64) {
	if length <= 0 {
		return
	}
	//nolint:errcheck // fallocate is advisory; not supported on all filesystems
	unix.Fallocate(int(fd.Fd()), unix.FALLOC_FL_KEEP_SIZE, offset, length)
}

// AdviseSequential tells the kernel the whole file will be read once, front
// to back, so it can read ahead aggressively.
//
//nolint:gosec // G115: fd values are small non-negative integers
func AdviseSequential(fd *os.File) {
	//nolint:errcheck // fadvise is advisory
	unix.Fadvise(int(fd.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
