package engine

import (
	"errors"
	"fmt"
)

// OpenError means the input could not be opened; nothing was transferred.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Name, e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// ErrSameFile is the cause carried by every SameFileError.
var ErrSameFile = errors.New("input file is output file")

// SameFileError means the input and the output are the same file. It is
// raised before any byte of that input is copied.
type SameFileError struct {
	Name string
}

func (e *SameFileError) Error() string { return e.Name + ": " + ErrSameFile.Error() }
func (e *SameFileError) Unwrap() error { return ErrSameFile }

// ReadError is a failure reading (or classifying for reading) one input.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Name, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is a failure writing the shared output. It aborts the run.
type WriteError struct {
	Name string // input being copied when the write failed
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// IsFatal reports whether err leaves the output unusable, so no further
// input may be processed.
func IsFatal(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// Cause returns the innermost human-readable reason for a transfer error,
// stripping the operation and path decorations added along the way.
func Cause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
