package store

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
)

// Store is the multipart-upload surface of an object store.
// Implementations must be safe for concurrent use; UploadPart is called from
// several workers at once.
type Store interface {
	// CreateMultipartUpload starts an upload and returns its upload id
	CreateMultipartUpload(ctx context.Context, input *CreateInput) (string, error)

	// UploadPart uploads one numbered part and returns its completion token
	UploadPart(ctx context.Context, input *PartInput) (string, error)

	// CompleteMultipartUpload assembles the parts, in the given order, into the object
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, key, uploadID string,
		parts []chunktypes.PartResult,
	) (*Completed, error)

	// AbortMultipartUpload discards the upload and any parts already stored
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// CreateInput describes a multipart upload to create.
type CreateInput struct {
	Bucket       string
	Key          string
	ContentType  string
	Metadata     map[string]string
	StorageClass chunktypes.StorageClass
	SSE          *chunktypes.SSEConfig
}

// PartInput describes one part upload.
type PartInput struct {
	Bucket     string
	Key        string
	UploadID   string
	PartNumber int32
	Body       []byte
}

// Completed is what the store reports about a finalized object.
type Completed struct {
	ETag      string
	Location  string
	VersionID string
}
