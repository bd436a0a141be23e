package buffer

import (
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/pool"
)

// Payload is one drained part, ready for upload.
type Payload struct {
	// PartNumber is assigned at drain time, starting at 1
	PartNumber int32

	// Data is the concatenation of the chunks drained into this part
	Data []byte
}

// Len returns the payload length in bytes.
func (p *Payload) Len() int64 {
	return int64(len(p.Data))
}

// Buffer accumulates chunks until the minimum part size is reached or the
// stream ends. It is not safe for concurrent use; a single producer owns it.
type Buffer struct {
	minPartSize int64
	pool        *pool.BufferPool

	acc        []byte
	size       int64
	partNumber int32
}

// New creates a buffer draining parts of at least minPartSize bytes.
// A nil pool allocates a fresh slice for every part.
func New(minPartSize int64, p *pool.BufferPool) *Buffer {
	if minPartSize <= 0 {
		minPartSize = chunktypes.DefaultMinPartSize
	}
	return &Buffer{
		minPartSize: minPartSize,
		pool:        p,
	}
}

// Add appends chunk to the buffer. A non-empty chunk drains once the buffered
// size reaches the minimum part size. An empty chunk marks the end of the
// stream and drains whatever is buffered; if no part was drained yet it
// produces a zero-length payload, so every stream yields at least one part.
// The chunk is copied; callers may reuse it once Add returns.
// Add returns nil when nothing was drained.
func (b *Buffer) Add(chunk []byte) (*Payload, error) {
	if len(chunk) == 0 {
		if b.size == 0 && b.partNumber > 0 {
			return nil, nil
		}
		return b.drain()
	}

	if b.acc == nil {
		b.acc = b.alloc()
	}
	b.acc = append(b.acc, chunk...)
	b.size += int64(len(chunk))

	if b.size < b.minPartSize {
		return nil, nil
	}
	return b.drain()
}

// Buffered returns the number of bytes waiting to be drained.
func (b *Buffer) Buffered() int64 {
	return b.size
}

// Parts returns how many payloads have been drained so far.
func (b *Buffer) Parts() int32 {
	return b.partNumber
}

func (b *Buffer) drain() (*Payload, error) {
	if b.partNumber >= chunktypes.MaxPartNumber {
		return nil, errors.New("drain", errors.CodeSizeLimitExceeded,
			fmt.Errorf("stream needs more than %d parts of %d bytes", chunktypes.MaxPartNumber, b.minPartSize))
	}

	b.partNumber++
	data := b.acc
	if data == nil {
		data = []byte{}
	}
	p := &Payload{
		PartNumber: b.partNumber,
		Data:       data,
	}

	b.acc = nil
	b.size = 0
	return p, nil
}

func (b *Buffer) alloc() []byte {
	if b.pool != nil {
		return b.pool.Get()
	}
	return make([]byte, 0, b.minPartSize)
}
