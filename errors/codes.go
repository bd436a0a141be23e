// Package errors provides the error taxonomy for streaming multipart uploads.
// Every failure surfaced by an upload session carries a Code so callers can
// branch on the kind of failure without string matching.
package errors

// Code identifies the kind of failure that ended or interrupted an upload.
// Codes are string-based for debuggability and natural JSON serialization.
type Code string

const (
	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeSizeLimitExceeded indicates the stream is larger than the configured maximum.
	CodeSizeLimitExceeded Code = "SIZE_LIMIT_EXCEEDED"

	// Store errors.

	// CodeCreateFailed indicates the store refused to start a multipart upload.
	CodeCreateFailed Code = "CREATE_FAILED"

	// CodePartUploadFailed indicates a single part upload failed.
	CodePartUploadFailed Code = "PART_UPLOAD_FAILED"

	// CodeResolutionFailed indicates at least one part failed while collecting results.
	CodeResolutionFailed Code = "RESOLUTION_FAILED"

	// CodeCompletionFailed indicates the store rejected the complete call.
	CodeCompletionFailed Code = "COMPLETION_FAILED"

	// CodeAbortFailed indicates the abort call failed and the upload may be orphaned.
	CodeAbortFailed Code = "ABORT_FAILED"

	// Session errors.

	// CodeSessionClosed indicates an operation on a session that already reached a terminal state.
	CodeSessionClosed Code = "SESSION_CLOSED"

	// CodeSchedulerClosed indicates a part was submitted after the scheduler shut down.
	CodeSchedulerClosed Code = "SCHEDULER_CLOSED"

	// CodeCanceled indicates the producer or caller canceled the upload.
	CodeCanceled Code = "CANCELED"

	// CodeSourceFailed indicates reading the producer's source failed mid-stream.
	CodeSourceFailed Code = "SOURCE_FAILED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown Code = "UNKNOWN"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Retryable reports whether a new session with a new upload id may succeed
// where this one failed. Nothing is retried automatically.
func (c Code) Retryable() bool {
	switch c {
	case CodePartUploadFailed, CodeResolutionFailed, CodeCreateFailed, CodeCompletionFailed, CodeSourceFailed:
		return true
	default:
		return false
	}
}
