package scheduler

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
)

// Handle resolves to the outcome of one submitted part upload.
type Handle struct {
	partNumber int32
	size       int64
	done       chan struct{}
	result     chunktypes.PartResult
	err        error
}

func newHandle(partNumber int32, size int64) *Handle {
	return &Handle{
		partNumber: partNumber,
		size:       size,
		done:       make(chan struct{}),
	}
}

// PartNumber returns the part number of the upload.
func (h *Handle) PartNumber() int32 {
	return h.partNumber
}

// Size returns the part payload size in bytes.
func (h *Handle) Size() int64 {
	return h.size
}

// Done is closed once the upload settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (h *Handle) Result() (chunktypes.PartResult, error) {
	return h.result, h.err
}

// Wait blocks until the upload settled or ctx is done.
func (h *Handle) Wait(ctx context.Context) (chunktypes.PartResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return chunktypes.PartResult{}, ctx.Err()
	}
}

func (h *Handle) resolve(result chunktypes.PartResult, err error) {
	h.result = result
	h.err = err
	close(h.done)
}
