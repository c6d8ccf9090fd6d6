//go:build linux

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// BulkMethods returns the descriptor-to-descriptor methods worth trying for
// an input/output kind pair, in order. copy_file_range needs regular files on
// both ends; sendfile needs an mmap-able (regular) input but accepts any
// output. Nothing is offered for pipe or device inputs.
func BulkMethods(in, out Kind) []CopyMethod {
	if in != RegularFile {
		return nil
	}
	if out == RegularFile {
		return []CopyMethod{CopyFileRange, Sendfile}
	}
	return []CopyMethod{Sendfile}
}

// BulkCopy moves bytes from src to dst with the given method until src
// reports end of input. Both descriptors' own file positions are used and
// advanced, so after a partial copy a plain read/write loop resumes exactly
// where the kernel stopped.
//
// size is the input's size hint; each call requests what remains of it, or
// a large sentinel once it is exhausted or unknown (growing files).
//
// If the very first call copies nothing, the result is ErrBulkUnsupported:
// pseudo-files report size 0 and copy_file_range returns 0 for them even
// when they have content.
func BulkCopy(method CopyMethod, dst, src *os.File, size int64) (BulkResult, error) {
	//nolint:gosec // G115: fd values are small non-negative integers
	srcFd, dstFd := int(src.Fd()), int(dst.Fd())
	result := BulkResult{Method: method}

	for {
		req := size - result.BytesWritten
		if req <= 0 || req > bulkSentinel {
			req = bulkSentinel
		}

		n, err := bulkCall(method, dstFd, srcFd, int(req))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if isFallbackErr(err) {
				// Any partial progress stays; the remainder goes through read/write.
				return result, ErrBulkUnsupported
			}
			return result, &BulkError{Method: method, WriteSide: isWriteSideErr(err), Err: err}
		}
		if n == 0 {
			if result.BytesWritten == 0 {
				return result, ErrBulkUnsupported
			}
			return result, nil
		}
		result.BytesWritten += int64(n)
	}
}

func bulkCall(method CopyMethod, dstFd, srcFd, n int) (int, error) {
	switch method {
	case CopyFileRange:
		return unix.CopyFileRange(srcFd, nil, dstFd, nil, n, 0)
	case Sendfile:
		return unix.Sendfile(dstFd, srcFd, nil, n)
	default:
		return 0, ErrBulkUnsupported
	}
}

// isFallbackErr reports whether err means "this method cannot serve this
// descriptor pair" rather than a real I/O failure.
//
//   - ENOSYS: syscall missing (old kernels, seccomp filters)
//   - EXDEV: copy_file_range across filesystems before 5.19 semantics
//   - EINVAL: unsupported file types, O_APPEND output for sendfile
//   - EOPNOTSUPP/ENOTSUP: filesystem does not implement the operation
//   - EBADF: copy_file_range with an O_APPEND output
//   - EPERM: append-only or immutable targets on some filesystems
//   - EOVERFLOW: size/offset limits of the filesystem driver
func isFallbackErr(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.EOPNOTSUPP,
		unix.EBADF, unix.EPERM, unix.EOVERFLOW:
		return true
	}
	return errno == unix.ENOTSUP
}

// isWriteSideErr reports errnos that can only come from the output.
func isWriteSideErr(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.EPIPE, unix.ENOSPC, unix.EDQUOT, unix.EFBIG:
		return true
	}
	return false
}
