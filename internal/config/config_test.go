package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/keys"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkupload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendS3, cfg.Store.Backend)
	assert.Equal(t, ByteSize(5*1024*1024), cfg.Upload.MinPartSize)
	assert.Equal(t, ByteSize(64*1024), cfg.Upload.ChunkSize)
	assert.Equal(t, PolicyEmptyPart, cfg.Upload.EmptyStreamPolicy)
	assert.Equal(t, keys.DefaultPrefixParam, cfg.Keys.PrefixParam)
	assert.True(t, cfg.Keys.AppendTimestamp)

	// a bucket is the only thing the defaults lack
	require.Error(t, cfg.Validate())
	cfg.Store.Bucket = "b"
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "127.0.0.1:9000"
  shutdownTimeout: 5s
store:
  backend: minio
  endpoint: http://localhost:9000
  bucket: media
  accessKeyId: minioadmin
  secretAccessKey: minioadmin
  disableSsl: true
upload:
  minPartSize: 8MiB
  maxSize: 2GiB
  chunkSize: 32k
  concurrency: 8
  emptyStreamPolicy: skip
keys:
  root: documents
  appendTimestamp: false
log:
  level: debug
  format: json
`)

	cfg, source, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, source)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/upload", cfg.Server.UploadPath)
	assert.Equal(t, BackendMinio, cfg.Store.Backend)
	assert.Equal(t, "media", cfg.Store.Bucket)
	assert.True(t, cfg.Store.DisableSSL)
	assert.Equal(t, ByteSize(8<<20), cfg.Upload.MinPartSize)
	assert.Equal(t, ByteSize(2<<30), cfg.Upload.MaxSize)
	assert.Equal(t, ByteSize(32<<10), cfg.Upload.ChunkSize)
	assert.Equal(t, 8, cfg.Upload.Concurrency)
	assert.Equal(t, "documents", cfg.Keys.Root)
	assert.False(t, cfg.Keys.AppendTimestamp)
	assert.Equal(t, keys.DefaultPrefixParam, cfg.Keys.PrefixParam)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  bucket: from-file
  region: eu-west-1
upload:
  concurrency: 2
`)

	t.Setenv("CHUNKUPLOAD_BUCKET", "from-env")
	t.Setenv("CHUNKUPLOAD_CONCURRENCY", "12")
	t.Setenv("CHUNKUPLOAD_MAX_SIZE", "100MB")
	t.Setenv("CHUNKUPLOAD_UNIQUE_SUFFIX", "true")
	t.Setenv("CHUNKUPLOAD_STORE_TIMEOUT", "45s")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Store.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Store.Region)
	assert.Equal(t, 12, cfg.Upload.Concurrency)
	assert.Equal(t, ByteSize(100<<20), cfg.Upload.MaxSize)
	assert.True(t, cfg.Keys.UniqueSuffix)
	assert.Equal(t, 45*time.Second, cfg.Store.Timeout)
}

func TestLoad_CredentialFallback(t *testing.T) {
	path := writeConfig(t, "store:\n  bucket: b\n")

	t.Setenv("AWS_ACCESS_KEY_ID", "plain")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "plain-secret")
	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "plain", cfg.Store.AccessKeyID)
	assert.Equal(t, "plain-secret", cfg.Store.SecretAccessKey)

	// the prefixed variable wins when both are set
	t.Setenv("CHUNKUPLOAD_ACCESS_KEY_ID", "prefixed")
	cfg, _, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Store.AccessKeyID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "malformed yaml", content: "store: [bucket"},
		{name: "bad size", content: "store:\n  bucket: b\nupload:\n  minPartSize: lots\n"},
		{name: "bad env int", content: "store:\n  bucket: b\n", env: map[string]string{"CHUNKUPLOAD_CONCURRENCY": "many"}},
		{name: "bad env bool", content: "store:\n  bucket: b\n", env: map[string]string{"CHUNKUPLOAD_DISABLE_SSL": "maybe"}},
		{name: "missing bucket", content: "log:\n  level: info\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig
		cfg.Store.Bucket = "bucket"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "gcs" }, wantErr: true},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Store.Backend = BackendMinio }, wantErr: true},
		{
			name:    "small parts on s3",
			mutate:  func(c *Config) { c.Upload.MinPartSize = 1024 },
			wantErr: true,
		},
		{
			name: "small parts allowed",
			mutate: func(c *Config) {
				c.Upload.MinPartSize = 1024
				c.Upload.AllowSmallParts = true
			},
		},
		{
			name: "small parts on minio",
			mutate: func(c *Config) {
				c.Store.Backend = BackendMinio
				c.Store.Endpoint = "localhost:9000"
				c.Upload.MinPartSize = 1024
			},
		},
		{name: "zero concurrency", mutate: func(c *Config) { c.Upload.Concurrency = 0 }, wantErr: true},
		{name: "zero chunk size", mutate: func(c *Config) { c.Upload.ChunkSize = 0 }, wantErr: true},
		{name: "unknown policy", mutate: func(c *Config) { c.Upload.EmptyStreamPolicy = "drop" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig
	cfg.Store.Bucket = "bucket"
	cfg.Store.Endpoint = "http://localhost:4566"
	cfg.Store.ForcePathStyle = true
	cfg.Store.AccessKeyID = "id"
	cfg.Store.SecretAccessKey = "secret"
	cfg.Store.Timeout = time.Minute
	cfg.Upload.MaxSize = 1 << 30
	cfg.Upload.QueueSize = 4
	cfg.Upload.EmptyStreamPolicy = PolicySkip

	var clientCfg chunktypes.ClientConfig
	for _, opt := range cfg.Options() {
		opt(&clientCfg)
	}

	assert.Equal(t, "us-east-1", clientCfg.Region)
	assert.Equal(t, "http://localhost:4566", clientCfg.Endpoint)
	assert.True(t, clientCfg.ForcePathStyle)
	assert.Equal(t, "id", clientCfg.AccessKeyID)
	assert.Equal(t, "secret", clientCfg.SecretAccessKey)
	assert.Equal(t, time.Minute, clientCfg.Timeout)
	assert.Equal(t, chunktypes.DefaultMinPartSize, clientCfg.MinPartSize)
	assert.Equal(t, int64(1<<30), clientCfg.MaxSize)
	assert.Equal(t, 4, clientCfg.QueueSize)
	assert.Equal(t, 64<<10, clientCfg.ChunkSize)
	assert.Equal(t, chunktypes.EmptyStreamSkipParts, clientCfg.EmptyStreamPolicy)
}

func TestConfig_NewClient(t *testing.T) {
	cfg := DefaultConfig
	cfg.Store.Bucket = "bucket"
	cfg.Store.Backend = BackendMinio
	cfg.Store.Endpoint = "http://localhost:9000"
	cfg.Store.AccessKeyID = "minioadmin"
	cfg.Store.SecretAccessKey = "minioadmin"

	client, err := cfg.NewClient()
	require.NoError(t, err)
	assert.Equal(t, chunktypes.DefaultConcurrency, client.Config().Concurrency)
}

func TestConfig_KeyPolicy(t *testing.T) {
	cfg := DefaultConfig
	cfg.Keys.Root = "root"
	cfg.Keys.UniqueSuffix = true

	policy := cfg.KeyPolicy()
	assert.Equal(t, "root", policy.Root)
	assert.Equal(t, keys.DefaultPrefixParam, policy.PrefixParam)
	assert.True(t, policy.AppendTimestamp)
	assert.True(t, policy.UniqueSuffix)
}

func TestByteSize_YAML(t *testing.T) {
	var out struct {
		A ByteSize `yaml:"a"`
		B ByteSize `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 5MiB\nb: 1024\n"), &out))
	assert.Equal(t, ByteSize(5<<20), out.A)
	assert.Equal(t, ByteSize(1024), out.B)

	data, err := yaml.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a: 5MiB")
}
