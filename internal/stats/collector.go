package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks per-run transfer statistics using lock-free atomic
// counters. Inputs are processed one at a time, but the presenter reads
// snapshots from its own goroutine.
type Collector struct {
	inputsCompleted atomic.Int64
	inputsFailed    atomic.Int64
	inputsSkipped   atomic.Int64
	bytesCopied     atomic.Int64
	bytesBulk       atomic.Int64
	bytesBuffered   atomic.Int64
	startTime       time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	InputsCompleted int64
	InputsFailed    int64
	InputsSkipped   int64
	BytesCopied     int64
	BytesBulk       int64 // moved by copy_file_range/sendfile
	BytesBuffered   int64 // moved by the read/write loop
	Elapsed         time.Duration
}

func (c *Collector) AddInputsCompleted(n int64) { c.inputsCompleted.Add(n) }
func (c *Collector) AddInputsFailed(n int64)    { c.inputsFailed.Add(n) }
func (c *Collector) AddInputsSkipped(n int64)   { c.inputsSkipped.Add(n) }

// AddBytes records n bytes written to the output; bulk selects which
// strategy counter they are attributed to.
func (c *Collector) AddBytes(n int64, bulk bool) {
	c.bytesCopied.Add(n)
	if bulk {
		c.bytesBulk.Add(n)
	} else {
		c.bytesBuffered.Add(n)
	}
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		InputsCompleted: c.inputsCompleted.Load(),
		InputsFailed:    c.inputsFailed.Load(),
		InputsSkipped:   c.inputsSkipped.Load(),
		BytesCopied:     c.bytesCopied.Load(),
		BytesBulk:       c.bytesBulk.Load(),
		BytesBuffered:   c.bytesBuffered.Load(),
		Elapsed:         c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"completed=%d failed=%d skipped=%d bytes=%d bulk=%d buffered=%d",
		s.InputsCompleted, s.InputsFailed, s.InputsSkipped,
		s.BytesCopied, s.BytesBulk, s.BytesBuffered,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
