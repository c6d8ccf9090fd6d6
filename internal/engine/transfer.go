package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/bamsammich/rat/internal/platform"
)

// State is a step of the per-input state machine.
type State int

const (
	Opening State = iota
	Classifying
	SelfCopyRejected
	BulkCopying
	BufferedCopy
	Completed
	Failed
	Skipped
)

var stateNames = [...]string{
	Opening:          "opening",
	Classifying:      "classifying",
	SelfCopyRejected: "self_copy_rejected",
	BulkCopying:      "bulk_copying",
	BufferedCopy:     "buffered_copy",
	Completed:        "completed",
	Failed:           "failed",
	Skipped:          "skipped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// DirPolicy decides what happens to an input that is a directory.
type DirPolicy int

const (
	// DirError reports the directory as a read failure, like cat.
	DirError DirPolicy = iota
	// DirSkip logs a warning and moves on without counting a failure.
	DirSkip
)

// Options tunes a transfer. The zero value allows bulk copies and uses the
// default buffer policy.
type Options struct {
	NoBulk     bool
	BufferSize int // non-pipe buffer override; 0 keeps the default
	Limiter    *rate.Limiter
	DirPolicy  DirPolicy
}

// Outcome is the result of one input's transfer.
type Outcome struct {
	Input      InputSpec
	Bytes      int64
	BulkBytes  int64               // part of Bytes moved by the kernel
	Method     platform.CopyMethod // method that moved the last bytes
	BufferSize int                 // 0 when the buffered loop never ran
	States     []State             // every state visited, in order
	Err        error
}

// State returns the terminal state.
func (o Outcome) State() State {
	if len(o.States) == 0 {
		return Opening
	}
	return o.States[len(o.States)-1]
}

// Transfer copies everything readable from in to out. The output handle is
// only borrowed: Transfer never closes either handle. On failure Bytes still
// reports what reached the output before the error.
func Transfer(ctx context.Context, in, out *StreamHandle, opts Options) Outcome {
	t := &transfer{in: in, out: out, opts: opts}
	t.visit(Classifying)
	t.run(ctx)
	return t.outcome()
}

type transfer struct {
	in, out *StreamHandle
	opts    Options

	written    int64
	bulkBytes  int64
	method     platform.CopyMethod
	bufferSize int
	states     []State
	err        error
	// reservedEnd is where preallocated space ends in the output; 0 when
	// nothing was reserved.
	reservedEnd int64
}

func (t *transfer) visit(s State) { t.states = append(t.states, s) }

func (t *transfer) outcome() Outcome {
	return Outcome{
		Bytes:      t.written,
		BulkBytes:  t.bulkBytes,
		Method:     t.method,
		BufferSize: t.bufferSize,
		States:     t.states,
		Err:        t.err,
	}
}

func (t *transfer) fail(err error) {
	t.err = err
	t.visit(Failed)
	t.releaseReserved()
}

func (t *transfer) run(ctx context.Context) {
	inStat, outStat := t.in.Stat, t.out.Stat

	if inStat.SameFile(outStat) {
		t.visit(SelfCopyRejected)
		t.fail(&SameFileError{Name: t.in.Name})
		return
	}

	if inStat.IsDir {
		if t.opts.DirPolicy == DirSkip {
			slog.Warn("skipping directory", "input", t.in.Name)
			t.visit(Skipped)
			return
		}
		t.fail(&ReadError{Name: t.in.Name, Err: syscall.EISDIR})
		return
	}

	if inStat.Kind == platform.RegularFile {
		platform.AdviseSequential(t.in.File)
		if outStat.Kind == platform.RegularFile && t.out.owned {
			t.preallocate()
		}
	}

	done, err := t.bulk(ctx)
	if err != nil {
		t.fail(err)
		return
	}
	if done {
		t.visit(Completed)
		return
	}

	if err := t.buffered(ctx); err != nil {
		t.fail(err)
		return
	}
	t.visit(Completed)
}

// bulk runs the kernel copy phase. It reports done=true when the input was
// drained without user-space buffering. done=false with a nil error means
// the buffered loop must finish the job, starting from the current file
// positions, which already reflect any bytes the kernel moved.
func (t *transfer) bulk(ctx context.Context) (bool, error) {
	if t.opts.NoBulk || t.opts.Limiter != nil {
		return false, nil
	}
	methods := platform.BulkMethods(t.in.Stat.Kind, t.out.Stat.Kind)
	if len(methods) == 0 {
		return false, nil
	}

	t.visit(BulkCopying)
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return false, &ReadError{Name: t.in.Name, Err: err}
		}

		result, err := platform.BulkCopy(m, t.out.File, t.in.File, t.in.Stat.Size-t.written)
		t.written += result.BytesWritten
		t.bulkBytes += result.BytesWritten
		if result.BytesWritten > 0 {
			t.method = m
		}

		switch {
		case err == nil:
			slog.Debug("bulk copy complete", "input", t.in.Name, "method", m, "bytes", t.written)
			return true, nil
		case errors.Is(err, platform.ErrBulkUnsupported):
			slog.Debug("bulk copy unsupported, falling back",
				"input", t.in.Name, "method", m, "copied", result.BytesWritten)
			continue
		default:
			var be *platform.BulkError
			if errors.As(err, &be) && be.WriteSide {
				return false, &WriteError{Name: t.in.Name, Err: err}
			}
			return false, &ReadError{Name: t.in.Name, Err: err}
		}
	}
	return false, nil
}

func (t *transfer) buffered(ctx context.Context) error {
	t.visit(BufferedCopy)
	t.bufferSize = BufferSize(t.in.Stat.Kind, t.out.Stat.Kind, t.opts.BufferSize)

	bufp := getBuffer(t.bufferSize)
	defer putBuffer(bufp)

	var dst io.Writer = t.out.File
	if t.opts.Limiter != nil {
		dst = newRateLimitedWriter(ctx, dst, t.opts.Limiter)
	}

	slog.Debug("buffered copy",
		"input", t.in.Name,
		"in_kind", t.in.Stat.Kind,
		"out_kind", t.out.Stat.Kind,
		"buffer", t.bufferSize,
		"resume_at", t.written,
	)

	n, err := copyLoop(ctx, dst, t.in.File, *bufp, t.in.Name)
	t.written += n
	if n > 0 {
		t.method = platform.ReadWrite
	}
	return err
}

// preallocate reserves room in a regular output for a regular input of known
// size, starting at the output's current end. Only outputs this process
// opened are reserved; a borrowed stdout may be shared with later writers.
func (t *transfer) preallocate() {
	size := t.in.Stat.Size
	if size <= 0 {
		return
	}
	info, err := t.out.File.Stat()
	if err != nil {
		return
	}
	end := info.Size()
	// Seeking to the current offset reads the position without moving it.
	if pos, err := t.out.File.Seek(0, io.SeekCurrent); err == nil {
		end = max(end, pos)
	}
	platform.Preallocate(t.out.File, end, size)
	t.reservedEnd = end + size
}

// releaseReserved drops blocks reserved past EOF after a failed transfer.
// Truncating to the current size frees KEEP_SIZE allocations without
// touching written data.
func (t *transfer) releaseReserved() {
	if t.reservedEnd == 0 {
		return
	}
	t.reservedEnd = 0
	info, err := t.out.File.Stat()
	if err != nil {
		return
	}
	if err := t.out.File.Truncate(info.Size()); err != nil {
		slog.Debug("release preallocated space", "output", t.out.Name, "error", err)
	}
}

// copyLoop reads up to len(buf) bytes at a time from src and writes every
// byte read to dst before reading again. A read of zero bytes ends the
// input. Short writes are retried until the full count is written.
func copyLoop(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, name string) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, &ReadError{Name: name, Err: err}
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := writeFull(dst, buf[:nr])
			total += int64(nw)
			if werr != nil {
				// A throttled write gives up when the context ends; the
				// output itself is still usable.
				if isContextErr(werr) {
					return total, &ReadError{Name: name, Err: werr}
				}
				return total, &WriteError{Name: name, Err: werr}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, &ReadError{Name: name, Err: rerr}
		}
		if nr == 0 {
			return total, nil
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// writeFull writes all of p, looping over partial writes. A writer that
// accepts nothing and reports no error would loop forever, so that case
// becomes io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) (int, error) {
	var written int
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
