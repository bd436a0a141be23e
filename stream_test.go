package chunkupload

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestClient_Upload(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		minPart   int64
		wantParts int
	}{
		{name: "smaller than one part", size: 100, chunkSize: 16, minPart: 1024, wantParts: 1},
		{name: "exact multiple of part size", size: 4096, chunkSize: 512, minPart: 1024, wantParts: 4},
		{name: "chunks larger than parts", size: 5000, chunkSize: 3000, minPart: 1024, wantParts: 2},
		{name: "empty reader", size: 0, chunkSize: 16, minPart: 1024, wantParts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testutil.NewMemoryStore()
			st.MinPartSize = tt.minPart
			client := NewWithStore(st, WithMinPartSize(tt.minPart), WithChunkSize(tt.chunkSize))

			data := testutil.GenerateRandomData(tt.size)
			result, err := client.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data))
			require.NoError(t, err)

			assert.Len(t, result.Parts, tt.wantParts)
			assert.Equal(t, int64(tt.size), result.Size)

			object, ok := st.Object(testBucket, testKey)
			require.True(t, ok)
			assert.True(t, bytes.Equal(data, object))
		})
	}
}

func TestClient_Upload_ReadError(t *testing.T) {
	st := testutil.NewMemoryStore()
	client := NewWithStore(st, WithMinPartSize(8), WithChunkSize(4))

	reader := testutil.ErrReader([]byte("partial data here"), fmt.Errorf("client disconnected"))
	result, err := client.Upload(context.Background(), testBucket, testKey, reader)
	require.Error(t, err)
	assert.Nil(t, result)

	assert.ErrorIs(t, err, errors.ErrSourceFailed)
	assert.True(t, errors.IsAborted(err))
	assert.Contains(t, err.Error(), "client disconnected")
	assert.Len(t, st.Aborts(), 1)
	assert.Empty(t, st.Completes())

	_, ok := st.Object(testBucket, testKey)
	assert.False(t, ok)
}

func TestClient_Upload_NilReader(t *testing.T) {
	st := testutil.NewMemoryStore()
	client := NewWithStore(st)

	_, err := client.Upload(context.Background(), testBucket, testKey, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Empty(t, st.Creates())
}

func TestClient_UploadFile(t *testing.T) {
	fs := memfs.New()
	content := append(append([]byte{}, pngHeader...), testutil.GenerateRandomData(10000)...)
	require.NoError(t, util.WriteFile(fs, "/data/image.png", content, 0o644))
	require.NoError(t, util.WriteFile(fs, "/data/notes.txt", []byte("plain text notes\n"), 0o644))
	require.NoError(t, fs.MkdirAll("/data/dir", 0o755))

	st := testutil.NewMemoryStore()
	client := NewWithStore(st, WithMinPartSize(1024), WithFilesystem(fs))

	t.Run("detects content type", func(t *testing.T) {
		result, err := client.UploadFile(context.Background(), testBucket, "image.png", "/data/image.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", result.ContentType)
		assert.Equal(t, int64(len(content)), result.Size)

		object, ok := st.Object(testBucket, "image.png")
		require.True(t, ok)
		assert.True(t, bytes.Equal(content, object))
	})

	t.Run("explicit content type wins", func(t *testing.T) {
		result, err := client.UploadFile(context.Background(), testBucket, "notes", "/data/notes.txt",
			WithContentType("text/markdown"))
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", result.ContentType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := client.UploadFile(context.Background(), testBucket, "missing", "/data/missing.bin")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := client.UploadFile(context.Background(), testBucket, "dir", "/data/dir")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestClient_UploadFile_OverLimit(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/big.bin", make([]byte, 200), 0o644))

	st := testutil.NewMemoryStore()
	client := NewWithStore(st, WithMaxSize(100), WithFilesystem(fs))

	_, err := client.UploadFile(context.Background(), testBucket, testKey, "/big.bin")
	assert.ErrorIs(t, err, errors.ErrSizeLimitExceeded)
	assert.Empty(t, st.Creates())
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType(pngHeader))
	assert.Equal(t, "application/octet-stream", DetectContentType(nil))
	assert.Contains(t, DetectContentType([]byte("hello world")), "text/plain")
}
