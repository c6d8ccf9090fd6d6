package engine

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps output throughput to
// bytesPerSec. The burst is one pipe buffer so a single read/write cycle
// passes through without waiting twice. A non-positive rate means no limit.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return rate.NewLimiter(rate.Inf, PipeBufferSize)
	}
	burst := PipeBufferSize
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedWriter wraps an io.Writer and waits for tokens before each
// write. Writes larger than the burst are split, since WaitN rejects n
// above the burst. A failed wait is always reported as a context error.
type rateLimitedWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func newRateLimitedWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) *rateLimitedWriter {
	return &rateLimitedWriter{w: w, limiter: limiter, ctx: ctx}
}

func (rw *rateLimitedWriter) Write(p []byte) (int, error) {
	var written int
	for written < len(p) {
		chunk := min(len(p)-written, rw.limiter.Burst())
		if err := rw.limiter.WaitN(rw.ctx, chunk); err != nil {
			if cerr := rw.ctx.Err(); cerr != nil {
				return written, cerr
			}
			// The limiter refuses waits that would outlast the deadline.
			return written, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		n, err := writeFull(rw.w, p[written:written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
