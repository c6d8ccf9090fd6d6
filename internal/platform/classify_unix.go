//go:build unix

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// Classify inspects an open descriptor with fstat(2).
//
//nolint:gosec // G115: fd values are small non-negative integers
func Classify(f *os.File) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Stat{Kind: Other}, os.NewSyscallError("fstat", err)
	}

	s := Stat{Size: st.Size}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		s.Kind = RegularFile
		s.Identity = &Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)} //nolint:unconvert // Dev is int32 on darwin
	case unix.S_IFIFO:
		s.Kind = Fifo
	case unix.S_IFCHR:
		s.Kind = CharDevice
	case unix.S_IFDIR:
		s.Kind = Other
		s.IsDir = true
	default:
		s.Kind = Other
	}
	return s, nil
}
