package store

import (
	stderrors "errors"
	"fmt"

	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// codeSentinels maps S3 API error codes, shared by AWS and MinIO, to the
// module's sentinel errors.
var codeSentinels = map[string]error{
	"NoSuchBucket":          errors.ErrBucketNotFound,
	"NoSuchUpload":          errors.ErrNoSuchUpload,
	"AccessDenied":          errors.ErrAccessDenied,
	"EntityTooSmall":        errors.ErrEntityTooSmall,
	"InvalidPart":           errors.ErrInvalidPart,
	"InvalidPartOrder":      errors.ErrInvalidPart,
	"InvalidAccessKeyId":    errors.ErrAccessDenied,
	"SignatureDoesNotMatch": errors.ErrAccessDenied,
}

// convertAWSError joins AWS SDK errors with the matching sentinel error.
// Unknown errors are returned unchanged.
func convertAWSError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchUpload *awstypes.NoSuchUpload
	if stderrors.As(err, &noSuchUpload) {
		return fmt.Errorf("%w: %w", errors.ErrNoSuchUpload, err)
	}

	var noSuchBucket *awstypes.NoSuchBucket
	if stderrors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", errors.ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		if sentinel, ok := codeSentinels[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}

	return err
}

// convertMinioError joins MinIO client errors with the matching sentinel error.
func convertMinioError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	if sentinel, ok := codeSentinels[string(resp.Code)]; ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
