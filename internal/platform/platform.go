package platform

import "errors"

// Kind classifies what an open descriptor refers to.
type Kind int

const (
	Other       Kind = iota // sockets, block devices, directories, unknown
	RegularFile             // S_IFREG
	Fifo                    // S_IFIFO (pipes and named FIFOs)
	CharDevice              // S_IFCHR
)

func (k Kind) String() string {
	switch k {
	case RegularFile:
		return "regular"
	case Fifo:
		return "fifo"
	case CharDevice:
		return "chardev"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// Identity uniquely identifies a filesystem object for self-copy detection.
type Identity struct {
	Dev uint64
	Ino uint64
}

// Stat is the classification of one open descriptor.
type Stat struct {
	Kind Kind
	// Identity is only set for regular files; pipes and devices have no
	// stable identity worth comparing.
	Identity *Identity
	Size     int64
	IsDir    bool
}

// SameFile reports whether both stats carry an identity and the identities match.
func (s Stat) SameFile(o Stat) bool {
	return s.Identity != nil && o.Identity != nil && *s.Identity == *o.Identity
}

// CopyMethod identifies which syscall/strategy moved the bytes.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// ErrBulkUnsupported signals that a bulk method cannot serve this descriptor
// pair and the caller should fall back to the next strategy.
var ErrBulkUnsupported = errors.New("bulk copy unsupported")

// bulkSentinel is requested per call when the input size is unknown. The
// kernel clamps it to its own per-call maximum.
const bulkSentinel = 1 << 30

// BulkResult reports how far a bulk copy got.
type BulkResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// BulkError wraps a failed bulk syscall with the side that failed.
type BulkError struct {
	Method CopyMethod
	// WriteSide is true when the errno can only originate from the output.
	WriteSide bool
	Err       error
}

func (e *BulkError) Error() string {
	return e.Method.String() + ": " + e.Err.Error()
}

func (e *BulkError) Unwrap() error { return e.Err }
