package chunkupload

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/transfer/buffer"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/transfer/registry"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/transfer/scheduler"
)

// Session streams one object into the store as a multipart upload.
//
// A session has a single producer. Write, Complete and Abort serialize on an
// internal lock. Abort may still be called from another goroutine, for example
// when the client connection drops: it cancels in-flight parts before taking
// the lock, which unblocks a Write waiting on a full queue or a Complete
// waiting on its parts.
type Session struct {
	id       string
	bucket   string
	key      string
	uploadID string

	store   store.Store
	cfg     chunktypes.SessionConfig
	maxSize int64
	policy  chunktypes.EmptyStreamPolicy
	logger  *slog.Logger

	buf   *buffer.Buffer
	sched *scheduler.Scheduler
	reg   *registry.Registry

	// uploadCtx carries every part upload; cancelUploads fires on abort or
	// when a Write context is canceled mid-submit.
	uploadCtx     context.Context
	cancelUploads context.CancelFunc

	started  time.Time
	received int64
	uploaded atomic.Int64

	mu     sync.Mutex
	state  chunktypes.State
	result *chunktypes.Result
	err    error
}

// NewSession validates the declared size, creates the store-side multipart
// upload and returns a session in the INITIATED state.
//
// A declared size above the client's MaxSize fails with
// errors.ErrSizeLimitExceeded before the store is contacted.
func (c *Client) NewSession(
	ctx context.Context,
	bucket, key string,
	opts ...chunktypes.SessionOption,
) (*Session, error) {
	if c.isClosed() {
		return nil, errors.NewObjectError("newSession", errors.CodeSessionClosed, bucket, key,
			errors.ErrSessionClosed).WithMessage("client closed")
	}
	if bucket == "" || key == "" {
		return nil, errors.NewObjectError("newSession", errors.CodeInvalidInput, bucket, key,
			fmt.Errorf("bucket and key are required"))
	}

	cfg := chunktypes.SessionConfig{
		ExpectedSize: chunktypes.UnknownSize,
		MinPartSize:  c.cfg.MinPartSize,
		Concurrency:  c.cfg.Concurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if c.cfg.MaxSize > 0 && cfg.ExpectedSize > c.cfg.MaxSize {
		return nil, errors.NewObjectError("newSession", errors.CodeSizeLimitExceeded, bucket, key,
			fmt.Errorf("declared size %d exceeds limit %d", cfg.ExpectedSize, c.cfg.MaxSize))
	}

	id := uuid.NewString()
	logger := c.logger.With("session_id", id, "bucket", bucket, "key", key)

	uploadID, err := c.store.CreateMultipartUpload(ctx, &store.CreateInput{
		Bucket:       bucket,
		Key:          key,
		ContentType:  cfg.ContentType,
		Metadata:     cfg.Metadata,
		StorageClass: cfg.StorageClass,
		SSE:          cfg.SSE,
	})
	if err != nil {
		logger.ErrorContext(ctx, "create multipart upload failed", "error", err)
		return nil, err
	}
	logger = logger.With("upload_id", uploadID)

	// The client pool only fits the client-wide part size.
	bufPool := c.pool
	if cfg.MinPartSize != c.cfg.MinPartSize {
		bufPool = pool.NewBufferPool(int(cfg.MinPartSize))
	}

	uploadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:            id,
		bucket:        bucket,
		key:           key,
		uploadID:      uploadID,
		store:         c.store,
		cfg:           cfg,
		maxSize:       c.cfg.MaxSize,
		policy:        c.cfg.EmptyStreamPolicy,
		logger:        logger,
		buf:           buffer.New(cfg.MinPartSize, bufPool),
		reg:           registry.New(),
		uploadCtx:     uploadCtx,
		cancelUploads: cancel,
		started:       time.Now(),
		state:         chunktypes.StateInitiated,
	}
	s.sched = scheduler.New(c.store,
		scheduler.WithWorkers(cfg.Concurrency),
		scheduler.WithQueueSize(c.cfg.QueueSize),
		scheduler.WithLogger(c.logger.With("session_id", id)),
		scheduler.WithRelease(bufPool.Put),
	)

	logger.InfoContext(ctx, "upload session initiated",
		"min_part_size", cfg.MinPartSize,
		"concurrency", s.sched.Workers(),
		"expected_size", cfg.ExpectedSize,
	)
	return s, nil
}

// ID returns the session's unique identifier, used in log records.
func (s *Session) ID() string {
	return s.id
}

// Bucket returns the target bucket.
func (s *Session) Bucket() string {
	return s.bucket
}

// Key returns the target object key.
func (s *Session) Key() string {
	return s.key
}

// UploadID returns the store-issued multipart upload id.
func (s *Session) UploadID() string {
	return s.uploadID
}

// State returns the current lifecycle state.
func (s *Session) State() chunktypes.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Size returns the number of bytes received so far.
func (s *Session) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Err returns the error the session was aborted with, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Write ingests one chunk. When the buffered bytes reach the part size, a
// part is dispatched to the workers and Write returns without waiting for
// its upload. Write blocks only while the upload queue is full.
//
// Empty chunks are ignored; the stream ends with Complete. Any failure aborts
// the session and is returned as an *errors.UploadError.
func (s *Session) Write(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.closedError("write")
	}
	if len(chunk) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return s.abortLocked(ctx, errors.NewObjectError("write", errors.CodeCanceled, s.bucket, s.key,
			err).WithUploadID(s.uploadID))
	}

	s.state = chunktypes.StateReceiving
	s.received += int64(len(chunk))

	if s.maxSize > 0 && s.received > s.maxSize {
		return s.abortLocked(ctx, errors.NewObjectError("write", errors.CodeSizeLimitExceeded, s.bucket,
			s.key, fmt.Errorf("received %d bytes, limit %d", s.received, s.maxSize)).WithUploadID(s.uploadID))
	}

	payload, err := s.buf.Add(chunk)
	if err != nil {
		return s.abortLocked(ctx, s.withContext(err))
	}
	if payload == nil {
		return nil
	}
	if err := s.dispatch(ctx, payload); err != nil {
		return s.abortLocked(ctx, err)
	}
	return nil
}

// Writer adapts the session to io.Writer. Close on the returned writer
// completes the session.
func (s *Session) Writer(ctx context.Context) io.WriteCloser {
	return &sessionWriter{ctx: ctx, s: s}
}

// Complete ends the stream: the remaining buffered bytes become the final
// part, every part is awaited in part-number order and the upload is
// completed. On failure the session is aborted and an *errors.UploadError
// is returned.
func (s *Session) Complete(ctx context.Context) (*chunktypes.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, s.closedError("complete")
	}
	s.state = chunktypes.StateFinalizing

	empty := s.buf.Parts() == 0 && s.buf.Buffered() == 0
	if !empty || s.policy == chunktypes.EmptyStreamUploadEmptyPart {
		payload, err := s.buf.Add(nil)
		if err != nil {
			return nil, s.abortLocked(ctx, s.withContext(err))
		}
		if payload != nil {
			if err := s.dispatch(ctx, payload); err != nil {
				return nil, s.abortLocked(ctx, err)
			}
		}
	}

	parts, err := s.reg.ResolveAll(ctx)
	if err != nil {
		return nil, s.abortLocked(ctx, s.withContext(err))
	}

	completed, err := s.store.CompleteMultipartUpload(ctx, s.bucket, s.key, s.uploadID, parts)
	if err != nil {
		return nil, s.abortLocked(ctx, err)
	}

	s.cancelUploads()
	s.sched.Shutdown()
	s.state = chunktypes.StateCompleted
	s.result = &chunktypes.Result{
		Bucket:      s.bucket,
		Key:         s.key,
		UploadID:    s.uploadID,
		Size:        s.received,
		Parts:       parts,
		ETag:        completed.ETag,
		Location:    completed.Location,
		ContentType: s.cfg.ContentType,
		Duration:    time.Since(s.started),
	}

	if s.cfg.ProgressTracker != nil {
		s.cfg.ProgressTracker.Complete()
	}
	s.logger.InfoContext(ctx, "upload completed",
		"size", s.result.Size,
		"parts", len(parts),
		"etag", s.result.ETag,
		"duration", s.result.Duration,
	)
	return s.result, nil
}

// Abort abandons the upload. In-flight parts are canceled and awaited, then
// the store-side upload is aborted exactly once. The returned
// *errors.UploadError carries cause and, separately, any abort failure.
func (s *Session) Abort(ctx context.Context, cause error) error {
	// A Write or Complete holding the lock may be waiting on uploadCtx.
	s.cancelUploads()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.closedError("abort")
	}
	if cause == nil {
		cause = errors.NewObjectError("abort", errors.CodeCanceled, s.bucket, s.key,
			errors.ErrCanceled).WithUploadID(s.uploadID)
	}
	return s.abortLocked(ctx, cause)
}

func (s *Session) dispatch(ctx context.Context, payload *buffer.Payload) error {
	// A canceled Write context must also unblock a Submit waiting on a full queue.
	stop := context.AfterFunc(ctx, s.cancelUploads)
	defer stop()

	h, err := s.sched.Submit(s.uploadCtx, scheduler.Task{
		Bucket:   s.bucket,
		Key:      s.key,
		UploadID: s.uploadID,
		Payload:  payload,
		OnDone:   s.partDone,
	})
	if err != nil {
		return err
	}
	return s.reg.Record(payload.PartNumber, h)
}

func (s *Session) partDone(result chunktypes.PartResult, err error) {
	if err != nil || s.cfg.ProgressTracker == nil {
		return
	}
	s.cfg.ProgressTracker.Update(s.uploaded.Add(result.Size), s.cfg.ExpectedSize)
}

// abortLocked must be called with s.mu held and a non-terminal state.
func (s *Session) abortLocked(ctx context.Context, cause error) error {
	s.state = chunktypes.StateFinalizing
	s.logger.WarnContext(ctx, "aborting upload", "error", cause, "pending_parts", s.reg.Pending())

	// Cleanup must run even when the caller's context is what failed.
	cleanupCtx := context.WithoutCancel(ctx)

	s.cancelUploads()
	if err := s.reg.WaitAll(cleanupCtx); err != nil {
		s.logger.WarnContext(ctx, "waiting for in-flight parts failed", "error", err)
	}
	s.sched.Shutdown()

	uploadErr := &errors.UploadError{
		Bucket:   s.bucket,
		Key:      s.key,
		UploadID: s.uploadID,
		Cause:    cause,
	}
	if err := s.store.AbortMultipartUpload(cleanupCtx, s.bucket, s.key, s.uploadID); err != nil {
		uploadErr.AbortErr = err
		s.logger.ErrorContext(ctx, "abort failed, multipart upload left in store",
			"error", err,
			"cause", cause,
		)
	} else {
		s.logger.InfoContext(ctx, "upload aborted", "received", s.received)
	}

	s.state = chunktypes.StateAborted
	s.err = uploadErr
	if s.cfg.ProgressTracker != nil {
		s.cfg.ProgressTracker.Error(uploadErr)
	}
	return uploadErr
}

func (s *Session) closedError(op string) error {
	return errors.NewObjectError(op, errors.CodeSessionClosed, s.bucket, s.key,
		fmt.Errorf("%w: session is %s", errors.ErrSessionClosed, s.state)).WithUploadID(s.uploadID)
}

// withContext attaches the session's coordinates to an engine error.
func (s *Session) withContext(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		if e.Bucket == "" {
			e.Bucket, e.Key = s.bucket, s.key
		}
		if e.UploadID == "" {
			e.UploadID = s.uploadID
		}
	}
	return err
}

type sessionWriter struct {
	ctx context.Context
	s   *Session
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	if err := w.s.Write(w.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *sessionWriter) Close() error {
	_, err := w.s.Complete(w.ctx)
	return err
}
