package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents an upload operation error with context about the operation
// that failed. It wraps the underlying store or SDK error.
type Error struct {
	// Op is the operation that failed (e.g., "uploadPart", "complete", "abort")
	Op string

	// Code classifies the failure
	Code Code

	// Bucket is the target bucket (if applicable)
	Bucket string

	// Key is the target object key (if applicable)
	Key string

	// UploadID is the store-issued multipart upload id (if applicable)
	UploadID string

	// PartNumber is the part the failure relates to, 0 when not part-specific
	PartNumber int32

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("chunkupload.")
	b.WriteString(e.Op)

	switch {
	case e.Bucket != "" && e.Key != "":
		fmt.Fprintf(&b, " %s/%s", e.Bucket, e.Key)
	case e.Bucket != "":
		fmt.Fprintf(&b, " bucket %s", e.Bucket)
	case e.Key != "":
		fmt.Fprintf(&b, " object %s", e.Key)
	}
	if e.UploadID != "" {
		fmt.Fprintf(&b, " upload %s", e.UploadID)
	}
	if e.PartNumber > 0 {
		fmt.Fprintf(&b, " part %d", e.PartNumber)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error that corresponds to the error's code.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && target == sentinel
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithUploadID adds the multipart upload id to an existing error.
func (e *Error) WithUploadID(uploadID string) *Error {
	e.UploadID = uploadID
	return e
}

// WithPart adds the part number to an existing error.
func (e *Error) WithPart(partNumber int32) *Error {
	e.PartNumber = partNumber
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates a new Error with the given operation, code and underlying error.
func New(op string, code Code, err error) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Err:  err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op string, code Code, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Code:   code,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// UploadError is returned when a session ends ABORTED. It carries the failure
// that triggered the abort and, separately, a failure of the abort call itself,
// so neither masks the other.
type UploadError struct {
	Bucket   string
	Key      string
	UploadID string

	// Cause is the failure that triggered the abort
	Cause error

	// AbortErr is non-nil when the store abort call failed; the upload may then
	// be left incomplete in the store and needs out-of-band cleanup.
	AbortErr error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	msg := fmt.Sprintf("chunkupload: upload %s to %s/%s aborted: %v", e.UploadID, e.Bucket, e.Key, e.Cause)
	if e.AbortErr != nil {
		msg += fmt.Sprintf(" (abort failed: %v)", e.AbortErr)
	}
	return msg
}

// Unwrap exposes both the cause and the abort failure to errors.Is and errors.As.
func (e *UploadError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.AbortErr != nil {
		errs = append(errs, e.AbortErr)
	}
	return errs
}

// Orphaned reports whether the store may still hold the incomplete upload.
func (e *UploadError) Orphaned() bool {
	return e.AbortErr != nil
}

// Sentinel errors for upload failure kinds.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("chunkupload: invalid input")

	// ErrSizeLimitExceeded indicates the stream exceeds the configured maximum size
	ErrSizeLimitExceeded = errors.New("chunkupload: size limit exceeded")

	// ErrCreateFailed indicates the multipart upload could not be created
	ErrCreateFailed = errors.New("chunkupload: create multipart upload failed")

	// ErrPartUploadFailed indicates a part upload failed
	ErrPartUploadFailed = errors.New("chunkupload: part upload failed")

	// ErrResolutionFailed indicates part results could not all be resolved
	ErrResolutionFailed = errors.New("chunkupload: part resolution failed")

	// ErrCompletionFailed indicates the store rejected completion
	ErrCompletionFailed = errors.New("chunkupload: completion failed")

	// ErrAbortFailed indicates the abort call failed
	ErrAbortFailed = errors.New("chunkupload: abort failed")

	// ErrSessionClosed indicates the session is already completed or aborted
	ErrSessionClosed = errors.New("chunkupload: session closed")

	// ErrSchedulerClosed indicates the scheduler no longer accepts tasks
	ErrSchedulerClosed = errors.New("chunkupload: scheduler closed")

	// ErrCanceled indicates the upload was canceled
	ErrCanceled = errors.New("chunkupload: canceled")

	// ErrSourceFailed indicates the stream source returned a read error
	ErrSourceFailed = errors.New("chunkupload: reading source failed")
)

// Store-reported conditions. Store adapters join these with the raw store
// error so both remain inspectable.
var (
	// ErrBucketNotFound indicates the target bucket does not exist
	ErrBucketNotFound = errors.New("chunkupload: bucket not found")

	// ErrAccessDenied indicates the store refused the credentials
	ErrAccessDenied = errors.New("chunkupload: access denied")

	// ErrNoSuchUpload indicates the upload id is unknown to the store
	ErrNoSuchUpload = errors.New("chunkupload: no such upload")

	// ErrEntityTooSmall indicates a non-final part was below the store minimum
	ErrEntityTooSmall = errors.New("chunkupload: part too small")

	// ErrInvalidPart indicates a part or its ETag did not match at completion
	ErrInvalidPart = errors.New("chunkupload: invalid part")
)

var sentinels = map[Code]error{
	CodeInvalidInput:      ErrInvalidInput,
	CodeSizeLimitExceeded: ErrSizeLimitExceeded,
	CodeCreateFailed:      ErrCreateFailed,
	CodePartUploadFailed:  ErrPartUploadFailed,
	CodeResolutionFailed:  ErrResolutionFailed,
	CodeCompletionFailed:  ErrCompletionFailed,
	CodeAbortFailed:       ErrAbortFailed,
	CodeSessionClosed:     ErrSessionClosed,
	CodeSchedulerClosed:   ErrSchedulerClosed,
	CodeCanceled:          ErrCanceled,
	CodeSourceFailed:      ErrSourceFailed,
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsSizeLimitExceeded checks if an error indicates the size limit was exceeded.
func IsSizeLimitExceeded(err error) bool {
	return errors.Is(err, ErrSizeLimitExceeded)
}

// IsAborted checks if an error came from a session that ended ABORTED.
func IsAborted(err error) bool {
	var e *UploadError
	return errors.As(err, &e)
}

// IsOrphaned checks if an aborted upload may still be held by the store.
func IsOrphaned(err error) bool {
	var e *UploadError
	return errors.As(err, &e) && e.Orphaned()
}
