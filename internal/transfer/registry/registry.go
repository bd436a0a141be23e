package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// Handle is a pending part upload. *scheduler.Handle satisfies it.
type Handle interface {
	PartNumber() int32
	Done() <-chan struct{}
	// Result is only called after Done is closed
	Result() (chunktypes.PartResult, error)
}

// Registry maps part numbers to their upload handles.
//
// Record is called by the producer and ResolveAll/WaitAll by the finalizer
// once production stopped; the two are never concurrent.
type Registry struct {
	handles []Handle

	failOnce sync.Once
	failed   chan struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{failed: make(chan struct{})}
}

// Record stores the handle of the next part. Part numbers must be recorded
// in order starting at 1.
func (r *Registry) Record(partNumber int32, h Handle) error {
	want := int32(len(r.handles)) + 1
	if partNumber != want || h.PartNumber() != partNumber {
		return errors.New("record", errors.CodeInvalidInput,
			fmt.Errorf("part %d recorded out of sequence, expected part %d", partNumber, want))
	}
	r.handles = append(r.handles, h)

	go r.watch(h)
	return nil
}

// Len returns the number of recorded parts.
func (r *Registry) Len() int {
	return len(r.handles)
}

// ResolveAll waits for every recorded part and returns the results in
// ascending part-number order. It returns as soon as any part has failed,
// with the lowest-numbered failure seen, without waiting for the remaining
// uploads; the scheduler still has to be shut down afterwards.
func (r *Registry) ResolveAll(ctx context.Context) ([]chunktypes.PartResult, error) {
	results := make([]chunktypes.PartResult, 0, len(r.handles))

	for _, h := range r.handles {
		select {
		case <-h.Done():
		case <-r.failed:
			return nil, r.firstFailure()
		case <-ctx.Done():
			return nil, errors.New("resolve", errors.CodeCanceled, ctx.Err())
		}

		res, err := h.Result()
		if err != nil {
			return nil, r.firstFailure()
		}
		results = append(results, res)
	}

	// completion order is arbitrary; the store needs ascending part numbers
	sort.Slice(results, func(i, j int) bool {
		return results[i].PartNumber < results[j].PartNumber
	})
	return results, nil
}

// WaitAll blocks until every recorded part has settled, successfully or not.
func (r *Registry) WaitAll(ctx context.Context) error {
	for _, h := range r.handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending returns how many recorded parts have not settled yet.
func (r *Registry) Pending() int {
	n := 0
	for _, h := range r.handles {
		select {
		case <-h.Done():
		default:
			n++
		}
	}
	return n
}

func (r *Registry) watch(h Handle) {
	<-h.Done()
	if _, err := h.Result(); err != nil {
		r.failOnce.Do(func() { close(r.failed) })
	}
}

// firstFailure scans settled handles in part-number order.
func (r *Registry) firstFailure() error {
	for _, h := range r.handles {
		select {
		case <-h.Done():
			if _, err := h.Result(); err != nil {
				return errors.New("resolve", errors.CodeResolutionFailed, err).WithPart(h.PartNumber())
			}
		default:
		}
	}
	return errors.New("resolve", errors.CodeResolutionFailed, fmt.Errorf("part failure reported but not found"))
}
