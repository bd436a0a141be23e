package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/transfer/buffer"
)

// PartUploader uploads a single part. store.Store satisfies it.
type PartUploader interface {
	UploadPart(ctx context.Context, input *store.PartInput) (string, error)
}

// Task pairs a part payload with the upload it belongs to.
type Task struct {
	Bucket   string
	Key      string
	UploadID string
	Payload  *buffer.Payload

	// OnDone, if set, is called from the worker once the part settles
	OnDone func(chunktypes.PartResult, error)
}

type job struct {
	ctx    context.Context
	task   Task
	handle *Handle
}

// Scheduler is a fixed-size worker pool for part uploads.
// It is safe for concurrent use by multiple sessions.
type Scheduler struct {
	uploader PartUploader
	workers  int
	queue    chan *job
	logger   *slog.Logger
	release  func([]byte)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts a scheduler whose workers upload through uploader.
func New(uploader PartUploader, opts ...Option) *Scheduler {
	cfg := &config{
		workers: chunktypes.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = cfg.workers
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Scheduler{
		uploader: uploader,
		workers:  cfg.workers,
		queue:    make(chan *job, cfg.queueSize),
		logger:   cfg.logger,
		release:  cfg.release,
	}

	s.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go s.worker()
	}
	return s
}

// Workers returns the number of workers in the pool.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Submit enqueues task and returns its handle without waiting for the upload.
// It blocks only while the queue is full; ctx bounds that wait and is also
// the context the upload runs with.
func (s *Scheduler) Submit(ctx context.Context, task Task) (*Handle, error) {
	if task.Payload == nil {
		return nil, errors.New("submit", errors.CodeInvalidInput, fmt.Errorf("task has no payload"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewObjectError("submit", errors.CodeSchedulerClosed, task.Bucket, task.Key,
			errors.ErrSchedulerClosed).WithUploadID(task.UploadID).WithPart(task.Payload.PartNumber)
	}

	h := newHandle(task.Payload.PartNumber, task.Payload.Len())
	j := &job{ctx: ctx, task: task, handle: h}

	select {
	case s.queue <- j:
		return h, nil
	case <-ctx.Done():
		return nil, errors.NewObjectError("submit", errors.CodeCanceled, task.Bucket, task.Key,
			ctx.Err()).WithUploadID(task.UploadID).WithPart(task.Payload.PartNumber)
	}
}

// Shutdown stops accepting tasks and waits for queued and in-flight uploads to
// finish before releasing the workers. In-flight uploads are not canceled.
// It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for j := range s.queue {
		s.run(j)
	}
}

func (s *Scheduler) run(j *job) {
	t := j.task
	result := chunktypes.PartResult{
		PartNumber: t.Payload.PartNumber,
		Size:       t.Payload.Len(),
	}

	etag, err := s.upload(j)
	if err == nil {
		result.ETag = etag
		s.logger.DebugContext(j.ctx, "part uploaded",
			"bucket", t.Bucket,
			"key", t.Key,
			"upload_id", t.UploadID,
			"part_number", t.Payload.PartNumber,
			"size", result.Size,
		)
	} else {
		s.logger.WarnContext(j.ctx, "part upload failed",
			"bucket", t.Bucket,
			"key", t.Key,
			"upload_id", t.UploadID,
			"part_number", t.Payload.PartNumber,
			"error", err,
		)
	}

	// The transport may still read the body of a failed request.
	if s.release != nil && err == nil {
		s.release(t.Payload.Data)
	}
	t.Payload.Data = nil

	if t.OnDone != nil {
		t.OnDone(result, err)
	}
	j.handle.resolve(result, err)
}

func (s *Scheduler) upload(j *job) (etag string, err error) {
	t := j.task
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewObjectError("uploadPart", errors.CodePartUploadFailed, t.Bucket, t.Key,
				fmt.Errorf("panic: %v", r)).WithUploadID(t.UploadID).WithPart(t.Payload.PartNumber)
		}
	}()

	etag, err = s.uploader.UploadPart(j.ctx, &store.PartInput{
		Bucket:     t.Bucket,
		Key:        t.Key,
		UploadID:   t.UploadID,
		PartNumber: t.Payload.PartNumber,
		Body:       t.Payload.Data,
	})
	if err != nil && errors.CodeOf(err) == errors.CodeUnknown {
		err = errors.NewObjectError("uploadPart", errors.CodePartUploadFailed, t.Bucket, t.Key,
			err).WithUploadID(t.UploadID).WithPart(t.Payload.PartNumber)
	}
	return etag, err
}
