// Package httpapi streams multipart/form-data uploads into object storage.
//
// Each file part of a POST body is fed to its own upload session while the
// request is still being read. Files are never spooled to disk.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/keys"
)

const (
	// DefaultUploadPath is the route uploads are accepted on.
	DefaultUploadPath = "/upload"

	healthPath  = "/healthz"
	sniffLen    = 3072
	octetStream = "application/octet-stream"

	// formOverhead is the room left above MaxSize for multipart framing.
	formOverhead = 1 << 10
)

// Uploader is the part of *chunkupload.Client the handler needs.
type Uploader interface {
	Upload(
		ctx context.Context,
		bucket, key string,
		r io.Reader,
		opts ...chunktypes.SessionOption,
	) (*chunktypes.Result, error)
	Config() chunktypes.ClientConfig
}

var _ Uploader = (*chunkupload.Client)(nil)

// FileResult describes one stored file in the upload response.
type FileResult struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
	Parts       int    `json:"parts"`
}

// Response is the body returned for a successful upload.
type Response struct {
	Files []FileResult `json:"files"`
}

// ErrorResponse is the body returned when an upload fails.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler serves upload and health routes.
type Handler struct {
	uploader   Uploader
	bucket     string
	keys       keys.Policy
	logger     *slog.Logger
	uploadPath string
	mux        *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithKeyPolicy sets how object keys are derived from file names.
func WithKeyPolicy(policy keys.Policy) Option {
	return func(h *Handler) {
		h.keys = policy
	}
}

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithUploadPath changes the upload route.
func WithUploadPath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.uploadPath = path
		}
	}
}

// New creates a handler storing every file in bucket.
func New(uploader Uploader, bucket string, opts ...Option) *Handler {
	h := &Handler{
		uploader:   uploader,
		bucket:     bucket,
		keys:       keys.DefaultPolicy(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		uploadPath: DefaultUploadPath,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc(h.uploadPath, h.handleUpload)
	h.mux.HandleFunc(healthPath, h.handleHealth)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, http.StatusMethodNotAllowed, errors.CodeInvalidInput,
			fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	// Coarse request cap; each session enforces the exact file limit.
	maxSize := h.uploader.Config().MaxSize
	if maxSize > 0 && r.ContentLength > maxSize+formOverhead {
		h.writeError(w, http.StatusRequestEntityTooLarge, errors.CodeSizeLimitExceeded,
			fmt.Errorf("request body of %d bytes exceeds limit of %d", r.ContentLength, maxSize))
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.CodeInvalidInput, err)
		return
	}

	ctx := r.Context()
	resp := Response{Files: []FileResult{}}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.writeError(w, http.StatusBadRequest, errors.CodeInvalidInput,
				fmt.Errorf("reading multipart body: %w", err))
			return
		}

		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		file, err := h.storePart(ctx, r, part)
		_ = part.Close()
		if err != nil {
			h.logger.ErrorContext(ctx, "file upload failed",
				"field", part.FormName(),
				"filename", part.FileName(),
				"error", err,
			)
			h.writeUploadError(w, err)
			return
		}
		resp.Files = append(resp.Files, *file)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// storePart streams one file part into its own session.
func (h *Handler) storePart(ctx context.Context, r *http.Request, part *multipart.Part) (*FileResult, error) {
	key, err := h.keys.FromRequest(r, part.FileName())
	if err != nil {
		return nil, err
	}

	body := bufio.NewReaderSize(part, sniffLen)
	contentType := part.Header.Get("Content-Type")
	if contentType == "" || contentType == octetStream {
		// Peek returns what it could read; a short file is not an error here.
		head, _ := body.Peek(sniffLen)
		contentType = chunkupload.DetectContentType(head)
	}

	h.logger.DebugContext(ctx, "receiving file",
		"field", part.FormName(),
		"filename", part.FileName(),
		"key", key,
		"content_type", contentType,
	)

	result, err := h.uploader.Upload(ctx, h.bucket, key, body, chunkupload.WithContentType(contentType))
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "file stored",
		"filename", part.FileName(),
		"bucket", result.Bucket,
		"key", result.Key,
		"size", result.Size,
		"parts", len(result.Parts),
	)
	return &FileResult{
		Field:       part.FormName(),
		Filename:    part.FileName(),
		Bucket:      result.Bucket,
		Key:         result.Key,
		Size:        result.Size,
		ETag:        result.ETag,
		ContentType: contentType,
		Parts:       len(result.Parts),
	}, nil
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	h.writeError(w, StatusFor(code), code, err)
}

// StatusFor maps an upload failure code to the HTTP status reported to the client.
func StatusFor(code errors.Code) int {
	switch code {
	case errors.CodeSizeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case errors.CodeInvalidInput, errors.CodeSourceFailed:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code errors.Code, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code.String()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
