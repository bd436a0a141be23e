package store

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// MinioCore defines the subset of the MinIO low-level client used by MinioStore.
type MinioCore interface {
	NewMultipartUpload(
		ctx context.Context,
		bucket, object string,
		opts minio.PutObjectOptions,
	) (string, error)

	PutObjectPart(
		ctx context.Context,
		bucket, object, uploadID string,
		partID int,
		data io.Reader,
		size int64,
		opts minio.PutObjectPartOptions,
	) (minio.ObjectPart, error)

	CompleteMultipartUpload(
		ctx context.Context,
		bucket, object, uploadID string,
		parts []minio.CompletePart,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)

	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

// Verify that the MinIO core client implements our interface
var _ MinioCore = (*minio.Core)(nil)

// MinioStore implements Store on top of the MinIO Go client.
type MinioStore struct {
	core MinioCore
}

// NewMinioStore wraps a MinIO core client.
func NewMinioStore(core MinioCore) *MinioStore {
	return &MinioStore{core: core}
}

var _ Store = (*MinioStore)(nil)

// CreateMultipartUpload creates a new multipart upload.
func (m *MinioStore) CreateMultipartUpload(ctx context.Context, in *CreateInput) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType:  in.ContentType,
		UserMetadata: in.Metadata,
		StorageClass: string(in.StorageClass),
	}
	if in.SSE != nil {
		if in.SSE.Type == chunktypes.SSEKMS {
			sse, err := encrypt.NewSSEKMS(in.SSE.KMSKeyID, nil)
			if err != nil {
				return "", errors.NewObjectError("createMultipartUpload", errors.CodeInvalidInput,
					in.Bucket, in.Key, err)
			}
			opts.ServerSideEncryption = sse
		} else {
			opts.ServerSideEncryption = encrypt.NewSSE()
		}
	}

	uploadID, err := m.core.NewMultipartUpload(ctx, in.Bucket, in.Key, opts)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", errors.CodeCreateFailed,
			in.Bucket, in.Key, convertMinioError(err))
	}
	return uploadID, nil
}

// UploadPart uploads a single part.
func (m *MinioStore) UploadPart(ctx context.Context, in *PartInput) (string, error) {
	part, err := m.core.PutObjectPart(ctx, in.Bucket, in.Key, in.UploadID, int(in.PartNumber),
		bytes.NewReader(in.Body), int64(len(in.Body)), minio.PutObjectPartOptions{})
	if err != nil {
		return "", errors.NewObjectError("uploadPart", errors.CodePartUploadFailed,
			in.Bucket, in.Key, convertMinioError(err)).WithUploadID(in.UploadID).WithPart(in.PartNumber)
	}
	return part.ETag, nil
}

// CompleteMultipartUpload completes the multipart upload with parts in the given order.
func (m *MinioStore) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []chunktypes.PartResult,
) (*Completed, error) {
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{
			PartNumber: int(p.PartNumber),
			ETag:       p.ETag,
		}
	}

	info, err := m.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return nil, errors.NewObjectError("completeMultipartUpload", errors.CodeCompletionFailed,
			bucket, key, convertMinioError(err)).WithUploadID(uploadID)
	}

	return &Completed{
		ETag:      info.ETag,
		Location:  info.Location,
		VersionID: info.VersionID,
	}, nil
}

// AbortMultipartUpload aborts the multipart upload.
func (m *MinioStore) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := m.core.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		return errors.NewObjectError("abortMultipartUpload", errors.CodeAbortFailed,
			bucket, key, convertMinioError(err)).WithUploadID(uploadID)
	}
	return nil
}
