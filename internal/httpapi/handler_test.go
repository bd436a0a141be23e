package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/keys"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/testutil"
)

const testBucket = "uploads"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// buildForm encodes fields and files as a multipart/form-data body.
func buildForm(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		if f.contentType != "" {
			header.Set("Content-Type", f.contentType)
		}
		w, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func newTestHandler(st *testutil.MemoryStore, opts ...Option) *Handler {
	client := chunkupload.NewWithStore(st,
		chunkupload.WithMinPartSize(8),
		chunkupload.WithChunkSize(3),
		chunkupload.WithMaxSize(1024),
	)
	policy := keys.DefaultPolicy()
	policy.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	opts = append([]Option{WithKeyPolicy(policy)}, opts...)
	return New(client, testBucket, opts...)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandler_Upload(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	textData := []byte("hello streaming world")
	body, contentType := buildForm(t,
		map[string]string{"description": "ignored"},
		formFile{field: "doc", filename: "notes.txt", contentType: "text/plain", data: textData},
		formFile{field: "image", filename: "pic.png", data: pngHeader},
	)

	req := httptest.NewRequest(http.MethodPost, "/upload?__prefix=team", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 2)

	doc := resp.Files[0]
	assert.Equal(t, "doc", doc.Field)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, testBucket, doc.Bucket)
	assert.Equal(t, "team/notes_20240102030405.txt", doc.Key)
	assert.Equal(t, int64(len(textData)), doc.Size)
	assert.Equal(t, "text/plain", doc.ContentType)
	assert.Equal(t, 3, doc.Parts)
	assert.NotEmpty(t, doc.ETag)

	img := resp.Files[1]
	assert.Equal(t, "team/pic_20240102030405.png", img.Key)
	assert.Equal(t, "image/png", img.ContentType)

	stored, ok := st.Object(testBucket, doc.Key)
	require.True(t, ok)
	assert.Equal(t, textData, stored)

	stored, ok = st.Object(testBucket, img.Key)
	require.True(t, ok)
	assert.Equal(t, pngHeader, stored)

	creates := st.Creates()
	require.Len(t, creates, 2)
	assert.Equal(t, "text/plain", creates[0].ContentType)
	assert.Equal(t, "image/png", creates[1].ContentType)
}

func TestHandler_NoFiles(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	body, contentType := buildForm(t, map[string]string{"name": "value"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
	assert.Empty(t, st.Creates())
}

func TestHandler_RequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       []byte
		ctype      string
		wantStatus int
		wantCode   errors.Code
	}{
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   errors.CodeInvalidInput,
		},
		{
			name:       "not multipart",
			method:     http.MethodPost,
			body:       []byte(`{"a":1}`),
			ctype:      "application/json",
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.CodeInvalidInput,
		},
		{
			name:       "body over limit",
			method:     http.MethodPost,
			body:       bytes.Repeat([]byte("x"), 4096),
			ctype:      "multipart/form-data; boundary=xyz",
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   errors.CodeSizeLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testutil.NewMemoryStore()
			h := newTestHandler(st)

			req := httptest.NewRequest(tt.method, "/upload", bytes.NewReader(tt.body))
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.wantCode), decodeError(t, rec).Code)
			assert.Empty(t, st.Creates())
		})
	}
}

func TestHandler_TruncatedBody(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	body, contentType := buildForm(t, nil,
		formFile{field: "doc", filename: "a.txt", contentType: "text/plain", data: []byte("0123456789abcdef")})
	// drop the closing boundary and the tail of the file
	truncated := body.Bytes()[:body.Len()-40]

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(truncated))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.CodeSourceFailed), decodeError(t, rec).Code)
	assert.Len(t, st.Aborts(), 1)
	assert.Empty(t, st.Completes())
}

func TestHandler_StoreFailure(t *testing.T) {
	st := testutil.NewMemoryStore()
	st.UploadHook = func(context.Context, *store.PartInput) error {
		return fmt.Errorf("connection reset")
	}
	h := newTestHandler(st)

	body, contentType := buildForm(t, nil,
		formFile{field: "doc", filename: "a.txt", contentType: "text/plain", data: []byte("0123456789")})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "connection reset")
	assert.Len(t, st.Aborts(), 1)
}

func TestHandler_FileOverLimit(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	body, contentType := buildForm(t, nil,
		formFile{field: "doc", filename: "big.bin", contentType: "application/zip", data: bytes.Repeat([]byte("z"), 1100)})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	// unknown length, so only the session limit applies
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, string(errors.CodeSizeLimitExceeded), decodeError(t, rec).Code)
	assert.Len(t, st.Aborts(), 1)
}

func TestHandler_InvalidFilename(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	body, contentType := buildForm(t, nil,
		formFile{field: "doc", filename: "..", data: []byte("data")})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, st.Creates())
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(testutil.NewMemoryStore())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_CustomPath(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st, WithUploadPath("/files"))

	body, contentType := buildForm(t, nil,
		formFile{field: "f", filename: "x.txt", contentType: "text/plain", data: []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_FileAtLimit(t *testing.T) {
	st := testutil.NewMemoryStore()
	h := newTestHandler(st)

	body, contentType := buildForm(t, nil,
		formFile{field: "doc", filename: "exact.bin", contentType: "application/zip", data: bytes.Repeat([]byte("z"), 1024)})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	require.Greater(t, req.ContentLength, int64(1024))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, int64(1024), resp.Files[0].Size)
	assert.Empty(t, st.Aborts())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusFor(errors.CodeSizeLimitExceeded))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.CodeInvalidInput))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.CodeSourceFailed))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.CodePartUploadFailed))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.CodeUnknown))
}
