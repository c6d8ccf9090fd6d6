package engine

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bamsammich/rat/internal/platform"
)

// StdinName is both the command-line alias for standard input and its
// display name in diagnostics.
const StdinName = "-"

// InputSpec identifies one requested input.
type InputSpec struct {
	Path  string
	Stdin bool
}

// ParseInput maps a command-line token to an InputSpec.
func ParseInput(arg string) InputSpec {
	if arg == StdinName {
		return InputSpec{Stdin: true}
	}
	return InputSpec{Path: arg}
}

// ParseInputs maps command-line tokens in order. No tokens means standard input.
func ParseInputs(args []string) []InputSpec {
	if len(args) == 0 {
		return []InputSpec{{Stdin: true}}
	}
	specs := make([]InputSpec, len(args))
	for i, a := range args {
		specs[i] = ParseInput(a)
	}
	return specs
}

// Name returns the display name used in diagnostics.
func (s InputSpec) Name() string {
	if s.Stdin {
		return StdinName
	}
	return s.Path
}

// StreamHandle is an open descriptor and its classification. Handles that
// wrap a descriptor the engine did not open (stdin, the shared output) are
// borrowed and Close leaves them open.
type StreamHandle struct {
	File  *os.File
	Name  string
	Stat  platform.Stat
	owned bool
}

// NewHandle classifies a borrowed descriptor. A failed metadata query is not
// an error: the handle becomes Other, which selects the conservative path.
func NewHandle(f *os.File, name string) *StreamHandle {
	return &StreamHandle{File: f, Name: name, Stat: classify(f, name)}
}

// OpenInput opens the descriptor for spec. Standard input is borrowed from
// stdin; anything else is owned by the returned handle.
func OpenInput(spec InputSpec, stdin *os.File) (*StreamHandle, error) {
	if spec.Stdin {
		if stdin == nil {
			return nil, &OpenError{Name: spec.Name(), Err: os.ErrInvalid}
		}
		return NewHandle(stdin, spec.Name()), nil
	}

	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, &OpenError{Name: spec.Name(), Err: err}
	}
	return OwnHandle(f, spec.Name()), nil
}

// OwnHandle classifies f and takes ownership of it: Close closes f.
func OwnHandle(f *os.File, name string) *StreamHandle {
	h := NewHandle(f, name)
	h.owned = true
	return h
}

// Close releases the descriptor if this handle owns it. It is safe to call
// more than once.
func (h *StreamHandle) Close() error {
	if h == nil || !h.owned || h.File == nil {
		return nil
	}
	err := h.File.Close()
	h.File = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", h.Name, err)
	}
	return nil
}

func classify(f *os.File, name string) platform.Stat {
	st, err := platform.Classify(f)
	if err != nil {
		slog.Debug("classify failed, treating as other", "name", name, "error", err)
		return platform.Stat{Kind: platform.Other}
	}
	return st
}
