package pool

import (
	"sync"
	"sync/atomic"
)

// maxRetainFactor bounds how much larger than the part size a buffer may have
// grown and still be pooled.
const maxRetainFactor = 2

// BufferPool manages reusable part buffers of a fixed nominal capacity.
type BufferPool struct {
	partSize int
	pool     *sync.Pool
	stats    Stats
}

// Stats tracks pool usage.
type Stats struct {
	Allocated atomic.Int64
	Returned  atomic.Int64
	Discarded atomic.Int64
}

// NewBufferPool creates a pool whose buffers have capacity for partSize bytes.
func NewBufferPool(partSize int) *BufferPool {
	if partSize <= 0 {
		partSize = 64 * 1024
	}
	bp := &BufferPool{partSize: partSize}
	bp.pool = &sync.Pool{
		New: func() interface{} {
			bp.stats.Allocated.Add(1)
			buf := make([]byte, 0, partSize)
			return &buf
		},
	}
	return bp
}

// PartSize returns the nominal capacity of pooled buffers.
func (bp *BufferPool) PartSize() int {
	return bp.partSize
}

// Get returns an empty buffer with at least PartSize capacity.
// The caller is responsible for calling Put once the buffer is no longer used.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	// Reset length to 0 but keep capacity
	*bufPtr = (*bufPtr)[:0]
	return *bufPtr
}

// Put returns a buffer to the pool.
// Buffers that are too small or grew far beyond the part size are dropped.
// The buffer must not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if c := cap(buf); c < bp.partSize || c > bp.partSize*maxRetainFactor {
		bp.stats.Discarded.Add(1)
		return
	}
	bp.stats.Returned.Add(1)
	buf = buf[:0]
	bp.pool.Put(&buf)
}

// Stats returns a snapshot of the pool counters.
func (bp *BufferPool) Stats() (allocated, returned, discarded int64) {
	return bp.stats.Allocated.Load(), bp.stats.Returned.Load(), bp.stats.Discarded.Load()
}
