package store

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// S3API defines the subset of the AWS S3 client used by S3Store.
// This interface allows for mocking in tests.
type S3API interface {
	// CreateMultipartUpload initiates a multipart upload
	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	// UploadPart uploads a part in a multipart upload
	UploadPart(
		ctx context.Context,
		params *s3.UploadPartInput,
		optFns ...func(*s3.Options),
	) (*s3.UploadPartOutput, error)

	// CompleteMultipartUpload completes a multipart upload
	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	// AbortMultipartUpload aborts a multipart upload
	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)
}

// Verify that the AWS S3 client implements our interface
var _ S3API = (*s3.Client)(nil)

// S3Store implements Store on top of the AWS SDK v2 S3 client.
type S3Store struct {
	client S3API
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

var _ Store = (*S3Store)(nil)

// CreateMultipartUpload creates a new multipart upload.
func (s *S3Store) CreateMultipartUpload(ctx context.Context, in *CreateInput) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	// Set storage class if specified
	if in.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(in.StorageClass)
	}

	if len(in.Metadata) > 0 {
		input.Metadata = in.Metadata
	}

	if in.SSE != nil {
		switch in.SSE.Type {
		case chunktypes.SSEKMS:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
			if in.SSE.KMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(in.SSE.KMSKeyID)
			}
		default:
			input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
		}
	}

	output, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", errors.CodeCreateFailed,
			in.Bucket, in.Key, convertAWSError(err))
	}

	uploadID := aws.ToString(output.UploadId)
	if uploadID == "" {
		return "", errors.NewObjectError("createMultipartUpload", errors.CodeCreateFailed,
			in.Bucket, in.Key, errors.ErrNoSuchUpload).WithMessage("store returned no upload id")
	}
	return uploadID, nil
}

// UploadPart uploads a single part.
func (s *S3Store) UploadPart(ctx context.Context, in *PartInput) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		UploadId:      aws.String(in.UploadID),
		PartNumber:    aws.Int32(in.PartNumber),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
	}

	output, err := s.client.UploadPart(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("uploadPart", errors.CodePartUploadFailed,
			in.Bucket, in.Key, convertAWSError(err)).WithUploadID(in.UploadID).WithPart(in.PartNumber)
	}

	return aws.ToString(output.ETag), nil
}

// CompleteMultipartUpload completes the multipart upload with parts in the given order.
func (s *S3Store) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []chunktypes.PartResult,
) (*Completed, error) {
	completed := make([]awstypes.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	}

	output, err := s.client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("completeMultipartUpload", errors.CodeCompletionFailed,
			bucket, key, convertAWSError(err)).WithUploadID(uploadID)
	}

	return &Completed{
		ETag:      aws.ToString(output.ETag),
		Location:  aws.ToString(output.Location),
		VersionID: aws.ToString(output.VersionId),
	}, nil
}

// AbortMultipartUpload aborts the multipart upload.
func (s *S3Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	if _, err := s.client.AbortMultipartUpload(ctx, input); err != nil {
		return errors.NewObjectError("abortMultipartUpload", errors.CodeAbortFailed,
			bucket, key, convertAWSError(err)).WithUploadID(uploadID)
	}
	return nil
}
