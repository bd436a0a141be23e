package chunkupload

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
)

// WithRegion sets the AWS region for store operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom store endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithCredentials sets static credentials instead of the default credential chain.
func WithCredentials(accessKeyID, secretAccessKey string) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithMaxRetries sets the maximum number of attempts per store request.
// Default is 3.
func WithMaxRetries(maxRetries int) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual store requests.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithDisableSSL disables TLS for MinIO connections.
// Only use this for local testing.
func WithDisableSSL(disableSSL bool) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.DisableSSL = disableSSL
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// It takes precedence over WithTimeout.
func WithCustomHTTPClient(client *http.Client) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithMinPartSize sets the threshold at which buffered bytes become a part.
// Default is 5 MiB, the S3 minimum for every part but the last.
func WithMinPartSize(size int64) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		if size > 0 {
			c.MinPartSize = size
		}
	}
}

// WithConcurrency sets the number of part upload workers per session.
// Default is 10.
func WithConcurrency(concurrency int) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithQueueSize bounds how many drained parts may wait for a worker before
// Write blocks. Default equals the concurrency.
func WithQueueSize(size int) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		if size > 0 {
			c.QueueSize = size
		}
	}
}

// WithMaxSize rejects objects larger than size bytes. Zero means unlimited.
func WithMaxSize(size int64) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		if size >= 0 {
			c.MaxSize = size
		}
	}
}

// WithEmptyStreamPolicy decides how a stream with no bytes is completed.
func WithEmptyStreamPolicy(policy chunktypes.EmptyStreamPolicy) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.EmptyStreamPolicy = policy
	}
}

// WithChunkSize sets the read size used by Upload and UploadFile.
// Default is 64 KiB.
func WithChunkSize(size int) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithLogger sets the structured logger. A nil logger discards all output.
func WithLogger(logger *slog.Logger) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem UploadFile reads from.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem billy.Filesystem) chunktypes.Option {
	return func(c *chunktypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the content type of the uploaded object.
func WithContentType(contentType string) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets user metadata on the uploaded object.
func WithMetadata(metadata map[string]string) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the storage class of the uploaded object.
func WithStorageClass(storageClass chunktypes.StorageClass) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		c.StorageClass = storageClass
	}
}

// WithServerSideEncryption sets server-side encryption for the uploaded object.
func WithServerSideEncryption(sse *chunktypes.SSEConfig) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		c.SSE = sse
	}
}

// WithExpectedSize declares the total stream size upfront. A declared size
// above the client's MaxSize is rejected before the store is contacted.
func WithExpectedSize(size int64) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		c.ExpectedSize = size
	}
}

// WithProgress sets a progress tracker for the session.
func WithProgress(tracker chunktypes.ProgressTracker) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithSessionPartSize overrides the client-level minimum part size for this session.
func WithSessionPartSize(size int64) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		if size > 0 {
			c.MinPartSize = size
		}
	}
}

// WithSessionConcurrency overrides the client-level worker count for this session.
func WithSessionConcurrency(concurrency int) chunktypes.SessionOption {
	return func(c *chunktypes.SessionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}
