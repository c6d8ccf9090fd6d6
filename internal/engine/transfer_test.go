package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/rat/internal/platform"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func openOutput(t *testing.T, path string, flag int) *StreamHandle {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|flag, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return NewHandle(f, path)
}

func openIn(t *testing.T, path string) *StreamHandle {
	t.Helper()
	h, err := OpenInput(ParseInput(path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// limitedWriter accepts at most k bytes per call and never reports an error
// for the bytes it declines.
type limitedWriter struct {
	buf   bytes.Buffer
	k     int
	calls int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(p) > w.k {
		p = p[:w.k]
	}
	return w.buf.Write(p)
}

func TestCopyLoopPartialWrites(t *testing.T) {
	data := randomBytes(t, 300*1024+7)
	for _, k := range []int{1, 7, 4096, 65535} {
		w := &limitedWriter{k: k}
		buf := make([]byte, PipeBufferSize)

		n, err := copyLoop(context.Background(), w, bytes.NewReader(data), buf, "stub")
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, data, w.buf.Bytes(), "k=%d", k)
		assert.GreaterOrEqual(t, w.calls, len(data)/k)
	}
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestCopyLoopStuckWriter(t *testing.T) {
	_, err := copyLoop(context.Background(), stuckWriter{}, bytes.NewReader([]byte("abc")), make([]byte, 8), "stub")

	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.True(t, IsFatal(err))
}

// failingReader returns its data, then fails.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCopyLoopReadErrorKeepsWrittenBytes(t *testing.T) {
	var out bytes.Buffer
	src := &failingReader{data: []byte("partial"), err: syscall.EIO}

	n, err := copyLoop(context.Background(), &out, src, make([]byte, 4), "flaky")
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "partial", out.String())

	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "flaky", re.Name)
	assert.ErrorIs(t, err, syscall.EIO)
	assert.False(t, IsFatal(err))
}

type zeroReader struct{ calls int }

func (r *zeroReader) Read([]byte) (int, error) {
	r.calls++
	return 0, nil
}

func TestCopyLoopZeroReadEndsInput(t *testing.T) {
	r := &zeroReader{}
	n, err := copyLoop(context.Background(), io.Discard, r, make([]byte, 8), "z")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, r.calls)
}

func TestCopyLoopCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := copyLoop(ctx, io.Discard, bytes.NewReader([]byte("abc")), make([]byte, 8), "c")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferSameFileAppend(t *testing.T) {
	dir := t.TempDir()
	original := []byte("do not duplicate me\n")
	path := writeTemp(t, dir, "self", original)

	out := openOutput(t, path, os.O_APPEND)
	in := openIn(t, path)

	res := Transfer(context.Background(), in, out, Options{})

	var se *SameFileError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, path, se.Name)
	assert.ErrorIs(t, res.Err, ErrSameFile)
	assert.Zero(t, res.Bytes)
	assert.Equal(t, []State{Classifying, SelfCopyRejected, Failed}, res.States)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestTransferSameFileEmpty(t *testing.T) {
	path := writeTemp(t, t.TempDir(), "empty", nil)
	out := openOutput(t, path, os.O_APPEND)
	in := openIn(t, path)

	res := Transfer(context.Background(), in, out, Options{})
	assert.ErrorIs(t, res.Err, ErrSameFile)
}

func TestTransferPipeToPipe10MiB(t *testing.T) {
	const size = 10 * 1024 * 1024
	data := randomBytes(t, size)
	want := blake3.Sum256(data)

	inR, inW, err := os.Pipe()
	require.NoError(t, err)
	defer inR.Close()
	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	defer outR.Close()

	go func() {
		_, _ = inW.Write(data)
		inW.Close()
	}()

	type digest struct {
		sum [32]byte
		n   int64
	}
	received := make(chan digest, 1)
	go func() {
		h := blake3.New()
		n, _ := io.Copy(h, outR)
		var d digest
		copy(d.sum[:], h.Sum(nil))
		d.n = n
		received <- d
	}()

	in := NewHandle(inR, "-")
	out := NewHandle(outW, "-")
	require.Equal(t, platform.Fifo, in.Stat.Kind)
	require.Equal(t, platform.Fifo, out.Stat.Kind)

	res := Transfer(context.Background(), in, out, Options{})
	require.NoError(t, outW.Close())

	require.NoError(t, res.Err)
	assert.Equal(t, int64(size), res.Bytes)
	assert.Zero(t, res.BulkBytes)
	assert.Equal(t, PipeBufferSize, res.BufferSize)
	assert.Equal(t, platform.ReadWrite, res.Method)
	assert.NotContains(t, res.States, BulkCopying)
	assert.Equal(t, []State{Classifying, BufferedCopy, Completed}, res.States)

	got := <-received
	assert.Equal(t, int64(size), got.n)
	assert.Equal(t, want, got.sum)
}

func TestTransferNoBulk(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 1<<20)
	src := writeTemp(t, dir, "src", data)
	dst := filepath.Join(dir, "dst")

	out := openOutput(t, dst, os.O_TRUNC)
	res := Transfer(context.Background(), openIn(t, src), out, Options{NoBulk: true})

	require.NoError(t, res.Err)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.NotContains(t, res.States, BulkCopying)
	assert.Equal(t, DefaultBufferSize, res.BufferSize)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestTransferBufferOverride(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 100*1024)
	src := writeTemp(t, dir, "src", data)
	dst := filepath.Join(dir, "dst")

	out := openOutput(t, dst, os.O_TRUNC)
	res := Transfer(context.Background(), openIn(t, src), out, Options{NoBulk: true, BufferSize: 4096})

	require.NoError(t, res.Err)
	assert.Equal(t, 4096, res.BufferSize)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestTransferWithLimiterSkipsBulk(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 64*1024)
	src := writeTemp(t, dir, "src", data)
	dst := filepath.Join(dir, "dst")

	out := openOutput(t, dst, os.O_TRUNC)
	res := Transfer(context.Background(), openIn(t, src), out, Options{Limiter: NewBWLimiter(1 << 30)})

	require.NoError(t, res.Err)
	assert.NotContains(t, res.States, BulkCopying)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestTransferDirectoryPolicy(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out")

	t.Run("error", func(t *testing.T) {
		out := openOutput(t, dst, os.O_TRUNC)
		res := Transfer(context.Background(), openIn(t, dir), out, Options{})

		var re *ReadError
		require.ErrorAs(t, res.Err, &re)
		assert.True(t, errors.Is(res.Err, syscall.EISDIR))
		assert.Equal(t, Failed, res.State())
	})

	t.Run("skip", func(t *testing.T) {
		out := openOutput(t, dst, os.O_TRUNC)
		res := Transfer(context.Background(), openIn(t, dir), out, Options{DirPolicy: DirSkip})

		require.NoError(t, res.Err)
		assert.Equal(t, Skipped, res.State())
		assert.Zero(t, res.Bytes)
	})
}

func TestTransferToCharDevice(t *testing.T) {
	data := randomBytes(t, 256*1024)
	src := writeTemp(t, t.TempDir(), "src", data)

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer devNull.Close()

	out := NewHandle(devNull, os.DevNull)
	res := Transfer(context.Background(), openIn(t, src), out, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.Equal(t, Completed, res.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "bulk_copying", BulkCopying.String())
	assert.Equal(t, "self_copy_rejected", SelfCopyRejected.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestTransferCancelledWhileThrottled(t *testing.T) {
	dir := t.TempDir()
	data := randomBytes(t, 1<<20)
	src := writeTemp(t, dir, "src", data)
	dst := filepath.Join(dir, "dst")

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	out := OwnHandle(f, dst)
	t.Cleanup(func() { out.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	res := Transfer(ctx, openIn(t, src), out, Options{Limiter: NewBWLimiter(64 * 1024)})

	var re *ReadError
	require.ErrorAs(t, res.Err, &re)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, IsFatal(res.Err), "the output is still usable")
	assert.Equal(t, Failed, res.State())
	assert.Less(t, res.Bytes, int64(len(data)))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data[:res.Bytes], got)
}

// ctxErrWriter fails like a throttled writer whose context ended.
type ctxErrWriter struct{ err error }

func (w ctxErrWriter) Write([]byte) (int, error) { return 0, w.err }

func TestCopyLoopContextWriteErrorIsNotFatal(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		_, err := copyLoop(context.Background(), ctxErrWriter{err: cause}, bytes.NewReader([]byte("abc")), make([]byte, 8), "slow")

		var re *ReadError
		require.ErrorAs(t, err, &re)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsFatal(err))
	}
}
