package engine

import (
	"os"
	"sync"

	"github.com/bamsammich/rat/internal/platform"
)

const (
	// PipeBufferSize matches the default Linux pipe capacity (16 pages).
	// Larger buffers only get split into several pipe-sized writes.
	PipeBufferSize = 64 * 1024

	preferredBufferSize = 128 * 1024
)

// DefaultBufferSize is used when neither end is a pipe: 128 KiB, or 16 pages
// when 128 KiB is not a whole number of pages.
var DefaultBufferSize = defaultBufferSize(os.Getpagesize())

func defaultBufferSize(pageSize int) int {
	if pageSize > 0 && preferredBufferSize%pageSize != 0 {
		return 16 * pageSize
	}
	return preferredBufferSize
}

// BufferSize returns the read/write buffer size for a kind pair. override,
// when positive, replaces the non-pipe default; pipes always get
// PipeBufferSize.
func BufferSize(in, out platform.Kind, override int) int {
	if in == platform.Fifo || out == platform.Fifo {
		return PipeBufferSize
	}
	if override > 0 {
		return override
	}
	return DefaultBufferSize
}

// bufPools holds one pool per buffer size. Buffers are allocated at their
// full size up front and reused across inputs.
var bufPools sync.Map // int -> *sync.Pool

func getBuffer(size int) *[]byte {
	p, ok := bufPools.Load(size)
	if !ok {
		p, _ = bufPools.LoadOrStore(size, &sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		})
	}
	return p.(*sync.Pool).Get().(*[]byte) //nolint:forcetypeassert // pool only stores *[]byte
}

func putBuffer(b *[]byte) {
	if p, ok := bufPools.Load(len(*b)); ok {
		p.(*sync.Pool).Put(b) //nolint:forcetypeassert // map only stores *sync.Pool
	}
}
