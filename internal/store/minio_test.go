package store_test

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
)

// fakeCore records calls and returns canned responses.
type fakeCore struct {
	createOpts minio.PutObjectOptions
	partBody   []byte
	partSize   int64
	completed  []minio.CompletePart
	aborted    string
	err        error
}

func (f *fakeCore) NewMultipartUpload(
	_ context.Context,
	_, _ string,
	opts minio.PutObjectOptions,
) (string, error) {
	f.createOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return "minio-upload", nil
}

func (f *fakeCore) PutObjectPart(
	_ context.Context,
	_, _, _ string,
	partID int,
	data io.Reader,
	size int64,
	_ minio.PutObjectPartOptions,
) (minio.ObjectPart, error) {
	if f.err != nil {
		return minio.ObjectPart{}, f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return minio.ObjectPart{}, err
	}
	f.partBody = body
	f.partSize = size
	return minio.ObjectPart{PartNumber: partID, ETag: "minio-etag"}, nil
}

func (f *fakeCore) CompleteMultipartUpload(
	_ context.Context,
	bucket, object, _ string,
	parts []minio.CompletePart,
	_ minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	f.completed = parts
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	return minio.UploadInfo{Bucket: bucket, Key: object, ETag: "final", VersionID: "v2"}, nil
}

func (f *fakeCore) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	f.aborted = uploadID
	return f.err
}

func TestMinioStore_Lifecycle(t *testing.T) {
	core := &fakeCore{}
	st := store.NewMinioStore(core)
	ctx := context.Background()

	uploadID, err := st.CreateMultipartUpload(ctx, &store.CreateInput{
		Bucket:       "bucket",
		Key:          "key",
		ContentType:  "text/plain",
		Metadata:     map[string]string{"a": "b"},
		StorageClass: chunktypes.StorageClassStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, "minio-upload", uploadID)
	assert.Equal(t, "text/plain", core.createOpts.ContentType)
	assert.Equal(t, map[string]string{"a": "b"}, core.createOpts.UserMetadata)
	assert.Equal(t, "STANDARD", core.createOpts.StorageClass)
	assert.Nil(t, core.createOpts.ServerSideEncryption)

	etag, err := st.UploadPart(ctx, &store.PartInput{
		Bucket:     "bucket",
		Key:        "key",
		UploadID:   uploadID,
		PartNumber: 1,
		Body:       []byte("chunk"),
	})
	require.NoError(t, err)
	assert.Equal(t, "minio-etag", etag)
	assert.Equal(t, []byte("chunk"), core.partBody)
	assert.Equal(t, int64(5), core.partSize)

	completed, err := st.CompleteMultipartUpload(ctx, "bucket", "key", uploadID,
		[]chunktypes.PartResult{{PartNumber: 1, ETag: etag, Size: 5}})
	require.NoError(t, err)
	assert.Equal(t, "final", completed.ETag)
	assert.Equal(t, "v2", completed.VersionID)
	assert.Equal(t, []minio.CompletePart{{PartNumber: 1, ETag: "minio-etag"}}, core.completed)

	require.NoError(t, st.AbortMultipartUpload(ctx, "bucket", "key", uploadID))
	assert.Equal(t, uploadID, core.aborted)
}

func TestMinioStore_ServerSideEncryption(t *testing.T) {
	core := &fakeCore{}
	st := store.NewMinioStore(core)

	_, err := st.CreateMultipartUpload(context.Background(), &store.CreateInput{
		Bucket: "bucket",
		Key:    "key",
		SSE:    &chunktypes.SSEConfig{Type: chunktypes.SSES3},
	})
	require.NoError(t, err)
	require.NotNil(t, core.createOpts.ServerSideEncryption)

	_, err = st.CreateMultipartUpload(context.Background(), &store.CreateInput{
		Bucket: "bucket",
		Key:    "key",
		SSE:    &chunktypes.SSEConfig{Type: chunktypes.SSEKMS, KMSKeyID: "my-key"},
	})
	require.NoError(t, err)
	require.NotNil(t, core.createOpts.ServerSideEncryption)
}

func TestMinioStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "no such upload", err: minio.ErrorResponse{Code: "NoSuchUpload"}, sentinel: errors.ErrNoSuchUpload},
		{name: "no such bucket", err: minio.ErrorResponse{Code: "NoSuchBucket"}, sentinel: errors.ErrBucketNotFound},
		{name: "bad signature", err: minio.ErrorResponse{Code: "SignatureDoesNotMatch"}, sentinel: errors.ErrAccessDenied},
		{name: "entity too small", err: minio.ErrorResponse{Code: "EntityTooSmall"}, sentinel: errors.ErrEntityTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := &fakeCore{err: tt.err}
			st := store.NewMinioStore(core)

			_, err := st.UploadPart(context.Background(), &store.PartInput{
				Bucket:     "bucket",
				Key:        "key",
				UploadID:   "upload",
				PartNumber: 2,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrPartUploadFailed)
			assert.ErrorIs(t, err, tt.sentinel)

			err = st.AbortMultipartUpload(context.Background(), "bucket", "key", "upload")
			assert.ErrorIs(t, err, errors.ErrAbortFailed)
		})
	}
}
