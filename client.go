package chunkupload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
)

const defaultChunkSize = 64 * 1024

// Client creates upload sessions against one store.
// It is safe for concurrent use; every session owns its own workers.
type Client struct {
	// store is the multipart backend all sessions talk to
	store store.Store

	// cfg is the resolved client configuration
	cfg chunktypes.ClientConfig

	logger *slog.Logger

	// pool recycles part buffers of the client-wide part size
	pool *pool.BufferPool

	// fs is the filesystem UploadFile reads from
	fs billy.Filesystem

	mu     sync.RWMutex
	closed bool
}

// New creates a client backed by AWS S3.
// It loads AWS credentials using the default credential chain unless static
// credentials are given, and applies the specified configuration options.
//
// Example:
//
//	client, err := chunkupload.New(
//	    chunkupload.WithRegion("us-west-2"),
//	    chunkupload.WithConcurrency(4),
//	)
func New(opts ...chunktypes.Option) (*Client, error) {
	clientCfg := resolveConfig(opts)

	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.New("client initialization", errors.CodeInvalidInput, err)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	if clientCfg.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			clientCfg.AccessKeyID, clientCfg.SecretAccessKey, ""))
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		httpClient := clientCfg.CustomHTTPClient
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)

	return newClient(store.NewS3Store(s3Client), clientCfg), nil
}

// NewMinio creates a client backed by a MinIO (or other S3-compatible)
// server reached at endpoint, given as host:port without a scheme.
func NewMinio(endpoint string, opts ...chunktypes.Option) (*Client, error) {
	clientCfg := resolveConfig(opts)

	if endpoint == "" {
		return nil, errors.New("client initialization", errors.CodeInvalidInput,
			fmt.Errorf("minio endpoint is required"))
	}

	minioOpts := &minio.Options{
		Creds:  miniocreds.NewStaticV4(clientCfg.AccessKeyID, clientCfg.SecretAccessKey, ""),
		Secure: !clientCfg.DisableSSL,
		Region: clientCfg.Region,
	}
	if clientCfg.ForcePathStyle {
		minioOpts.BucketLookup = minio.BucketLookupPath
	}
	if clientCfg.MaxRetries > 0 {
		minioOpts.MaxRetries = clientCfg.MaxRetries
	}
	if clientCfg.CustomHTTPClient != nil {
		minioOpts.Transport = clientCfg.CustomHTTPClient.Transport
	}

	core, err := minio.NewCore(endpoint, minioOpts)
	if err != nil {
		return nil, errors.New("client initialization", errors.CodeInvalidInput, err)
	}

	return newClient(store.NewMinioStore(core), clientCfg), nil
}

// NewWithClient creates a client around a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client store.S3API, opts ...chunktypes.Option) *Client {
	return newClient(store.NewS3Store(s3Client), resolveConfig(opts))
}

// NewWithStore creates a client around any Store implementation.
func NewWithStore(st store.Store, opts ...chunktypes.Option) *Client {
	return newClient(st, resolveConfig(opts))
}

func resolveConfig(opts []chunktypes.Option) chunktypes.ClientConfig {
	cfg := chunktypes.ClientConfig{
		MaxRetries:  3,
		MinPartSize: chunktypes.DefaultMinPartSize,
		Concurrency: chunktypes.DefaultConcurrency,
		ChunkSize:   defaultChunkSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func newClient(st store.Store, cfg chunktypes.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		// Default to OS filesystem rooted at /
		filesystem = osfs.New("/")
	}

	return &Client{
		store:  st,
		cfg:    cfg,
		logger: logger,
		pool:   pool.NewBufferPool(int(cfg.MinPartSize)),
		fs:     filesystem,
	}
}

// SetFilesystem sets the filesystem implementation for the client.
func (c *Client) SetFilesystem(filesystem billy.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

// Config returns a copy of the resolved client configuration.
func (c *Client) Config() chunktypes.ClientConfig {
	return c.cfg
}

// Close stops the client from opening new sessions.
// Sessions already open run to completion.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) filesystem() billy.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
