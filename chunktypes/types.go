// Package chunktypes provides shared type definitions for the chunkupload module.
package chunktypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
)

const (
	// DefaultMinPartSize is the smallest part most stores accept for every part but the last (5 MiB).
	DefaultMinPartSize int64 = 5 * 1024 * 1024

	// DefaultConcurrency is the default number of part upload workers.
	DefaultConcurrency = 10

	// MaxPartNumber is the highest part number a multipart upload may use.
	MaxPartNumber int32 = 10000

	// UnknownSize marks a stream whose total size is not declared upfront.
	UnknownSize int64 = -1
)

// State is the lifecycle state of an upload session.
type State int

// Session states. A session only moves forward through these states.
const (
	// StateInitiated means the store-side multipart upload exists and no chunk arrived yet
	StateInitiated State = iota

	// StateReceiving means chunks are being buffered and parts dispatched
	StateReceiving

	// StateFinalizing means the stream ended (or failed) and parts are being reconciled
	StateFinalizing

	// StateCompleted means the object is addressable at bucket/key
	StateCompleted

	// StateAborted means the multipart upload was abandoned
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitiated:
		return "INITIATED"
	case StateReceiving:
		return "RECEIVING"
	case StateFinalizing:
		return "FINALIZING"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// EmptyStreamPolicy decides what a session does when the stream ends before
// any byte was received.
type EmptyStreamPolicy int

const (
	// EmptyStreamUploadEmptyPart uploads a single zero-length part. S3 rejects
	// completing an upload with no parts, so this is the default.
	EmptyStreamUploadEmptyPart EmptyStreamPolicy = iota

	// EmptyStreamSkipParts uploads nothing and completes with an empty part
	// list, for stores that accept it.
	EmptyStreamSkipParts
)

// String returns the policy name as used in configuration files.
func (p EmptyStreamPolicy) String() string {
	if p == EmptyStreamSkipParts {
		return "skip"
	}
	return "empty-part"
}

// StorageClass represents the storage class for uploaded objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacierIR provides Glacier Instant Retrieval storage
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// SSEType represents the server-side encryption type for objects.
type SSEType string

// Predefined server-side encryption types
const (
	// SSES3 uses S3-managed encryption keys
	SSES3 SSEType = "AES256"

	// SSEKMS uses AWS KMS-managed encryption keys
	SSEKMS SSEType = "aws:kms"
)

// SSEConfig contains server-side encryption configuration.
type SSEConfig struct {
	// Type is the encryption type
	Type SSEType

	// KMSKeyID is the KMS key ID (SSE-KMS only)
	KMSKeyID string
}

// PartResult is the store's record of one uploaded part.
type PartResult struct {
	// PartNumber is the 1-based position of the part in the object
	PartNumber int32

	// ETag is the store's completion token for the part
	ETag string

	// Size is the number of bytes in the part
	Size int64
}

// Result describes an object after its session reached COMPLETED.
type Result struct {
	// Bucket and Key address the finalized object
	Bucket string
	Key    string

	// UploadID is the multipart upload id the object was assembled from
	UploadID string

	// Size is the final object size in bytes
	Size int64

	// Parts are the completed parts in part-number order
	Parts []PartResult

	// ETag is the object's entity tag as reported by the store
	ETag string

	// Location is the object URL when the store reports one
	Location string

	// ContentType is the content type the upload was created with
	ContentType string

	// Duration is how long the session took from creation to completion
	Duration time.Duration
}

// ProgressTracker receives progress updates while parts finish uploading.
type ProgressTracker interface {
	// Update is called whenever a part finishes; totalBytes is UnknownSize
	// unless the stream declared its size
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the upload completes successfully
	Complete()

	// Error is called when the upload is aborted
	Error(err error)
}

// ClientConfig holds configuration for the upload client.
type ClientConfig struct {
	// Store connection
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	MaxRetries       int
	Timeout          time.Duration
	ForcePathStyle   bool
	DisableSSL       bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client

	// Engine
	MinPartSize       int64
	Concurrency       int
	QueueSize         int
	MaxSize           int64 // 0 means unlimited
	EmptyStreamPolicy EmptyStreamPolicy
	ChunkSize         int // read size used by the io.Reader producers

	Logger     *slog.Logger
	Filesystem billy.Filesystem
}

// SessionConfig holds configuration for a single upload session.
type SessionConfig struct {
	ContentType     string
	Metadata        map[string]string
	StorageClass    StorageClass
	SSE             *SSEConfig
	ExpectedSize    int64
	ProgressTracker ProgressTracker
	MinPartSize     int64
	Concurrency     int
}

type (
	// Option is a functional option for configuring the upload client.
	Option func(*ClientConfig)
	// SessionOption is a functional option for configuring one upload session.
	SessionOption func(*SessionConfig)
)
