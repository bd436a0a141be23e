package chunkupload

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// sniffLen is how many leading bytes are inspected for content detection.
const sniffLen = 3072

// Upload streams r into bucket/key, reading it in chunks of the configured
// chunk size. The session is completed at EOF; a read error aborts it.
//
// Example:
//
//	result, err := client.Upload(ctx, "my-bucket", "logs/app.log", resp.Body,
//	    chunkupload.WithContentType("text/plain"),
//	)
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	opts ...chunktypes.SessionOption,
) (*chunktypes.Result, error) {
	if r == nil {
		return nil, errors.NewObjectError("upload", errors.CodeInvalidInput, bucket, key,
			fmt.Errorf("reader is nil"))
	}

	session, err := c.NewSession(ctx, bucket, key, opts...)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, session, r)
}

// UploadFile streams a file from the client's filesystem into bucket/key.
// The file size is declared upfront and the content type is sniffed from the
// file's leading bytes unless WithContentType is given.
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, localPath string,
	opts ...chunktypes.SessionOption,
) (*chunktypes.Result, error) {
	filesystem := c.filesystem()

	info, err := filesystem.Stat(localPath)
	if err != nil {
		return nil, errors.NewObjectError("uploadFile", errors.CodeInvalidInput, bucket, key,
			fmt.Errorf("stat %s: %w", localPath, err))
	}
	if info.IsDir() {
		return nil, errors.NewObjectError("uploadFile", errors.CodeInvalidInput, bucket, key,
			fmt.Errorf("%s is a directory", localPath))
	}

	file, err := filesystem.Open(localPath)
	if err != nil {
		return nil, errors.NewObjectError("uploadFile", errors.CodeInvalidInput, bucket, key,
			fmt.Errorf("open %s: %w", localPath, err))
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.NewObjectError("uploadFile", errors.CodeSourceFailed, bucket, key,
			fmt.Errorf("read %s: %w", localPath, err))
	}
	head = head[:n]

	// Caller options come last so an explicit content type wins.
	sessionOpts := make([]chunktypes.SessionOption, 0, len(opts)+2)
	sessionOpts = append(sessionOpts,
		WithExpectedSize(info.Size()),
		WithContentType(DetectContentType(head)),
	)
	sessionOpts = append(sessionOpts, opts...)

	return c.Upload(ctx, bucket, key, io.MultiReader(bytes.NewReader(head), file), sessionOpts...)
}

// DetectContentType returns the MIME type of data, falling back to
// application/octet-stream when nothing matches.
func DetectContentType(data []byte) string {
	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt != nil {
			return mt.String()
		}
	}
	return "application/octet-stream"
}

func (c *Client) drive(ctx context.Context, session *Session, r io.Reader) (*chunktypes.Result, error) {
	chunk := make([]byte, c.cfg.ChunkSize)
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			// Write copies the chunk, so the read buffer can be reused.
			if err := session.Write(ctx, chunk[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, session.Abort(ctx, errors.NewObjectError("read", errors.CodeSourceFailed,
				session.Bucket(), session.Key(), readErr).WithUploadID(session.UploadID()))
		}
	}
	return session.Complete(ctx)
}
