//go:build !unix

package platform

import "os"

// Classify inspects an open descriptor through os.File.Stat. Identity is
// never available here, so self-copy detection is disabled on these platforms.
func Classify(f *os.File) (Stat, error) {
	info, err := f.Stat()
	if err != nil {
		return Stat{Kind: Other}, err
	}
	mode := info.Mode()
	s := Stat{Size: info.Size(), IsDir: mode.IsDir()}
	switch {
	case mode.IsRegular():
		s.Kind = RegularFile
	case mode&os.ModeNamedPipe != 0:
		s.Kind = Fifo
	case mode&os.ModeCharDevice != 0:
		s.Kind = CharDevice
	default:
		s.Kind = Other
	}
	return s, nil
}
