// Package config loads the upload daemon's configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/keys"
)

// Store backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Empty stream policies as written in the config file.
const (
	PolicyEmptyPart = "empty-part"
	PolicySkip      = "skip"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHUNKUPLOAD_"

// Config holds the complete daemon configuration
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Upload UploadConfig `yaml:"upload" json:"upload"`
	Keys   KeysConfig   `yaml:"keys" json:"keys"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `yaml:"address" json:"address"`
	UploadPath        string        `yaml:"uploadPath" json:"uploadPath"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" json:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// StoreConfig holds object store connection settings
type StoreConfig struct {
	Backend         string        `yaml:"backend" json:"backend"`
	Region          string        `yaml:"region" json:"region"`
	Endpoint        string        `yaml:"endpoint" json:"endpoint"`
	Bucket          string        `yaml:"bucket" json:"bucket"`
	AccessKeyID     string        `yaml:"accessKeyId" json:"accessKeyId"`
	SecretAccessKey string        `yaml:"secretAccessKey" json:"-"`
	ForcePathStyle  bool          `yaml:"forcePathStyle" json:"forcePathStyle"`
	DisableSSL      bool          `yaml:"disableSsl" json:"disableSsl"`
	MaxRetries      int           `yaml:"maxRetries" json:"maxRetries"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

// UploadConfig holds streaming engine settings
type UploadConfig struct {
	MinPartSize       ByteSize `yaml:"minPartSize" json:"minPartSize"`
	Concurrency       int      `yaml:"concurrency" json:"concurrency"`
	QueueSize         int      `yaml:"queueSize" json:"queueSize"`
	MaxSize           ByteSize `yaml:"maxSize" json:"maxSize"`
	ChunkSize         ByteSize `yaml:"chunkSize" json:"chunkSize"`
	EmptyStreamPolicy string   `yaml:"emptyStreamPolicy" json:"emptyStreamPolicy"`

	// AllowSmallParts permits part sizes below the S3 minimum, for test stores
	AllowSmallParts bool `yaml:"allowSmallParts" json:"allowSmallParts"`
}

// KeysConfig holds object key naming settings
type KeysConfig struct {
	Root            string `yaml:"root" json:"root"`
	PrefixParam     string `yaml:"prefixParam" json:"prefixParam"`
	AppendTimestamp bool   `yaml:"appendTimestamp" json:"appendTimestamp"`
	UniqueSuffix    bool   `yaml:"uniqueSuffix" json:"uniqueSuffix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ByteSize is a size in bytes written in human form, such as "5MiB" or "64k".
type ByteSize int64

// UnmarshalYAML accepts plain integers and human sizes.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	size, err := ParseByteSize(raw)
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalYAML writes the size in binary units.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// String formats the size in binary units.
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// ParseByteSize parses a human size using binary multipliers.
func ParseByteSize(s string) (ByteSize, error) {
	size, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("invalid size %q: negative", s)
	}
	return ByteSize(size), nil
}

// DefaultConfig Default configuration values
var DefaultConfig = Config{
	Server: ServerConfig{
		Address:           ":8080",
		UploadPath:        "/upload",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	},
	Store: StoreConfig{
		Backend:    BackendS3,
		Region:     "us-east-1",
		MaxRetries: 3,
	},
	Upload: UploadConfig{
		MinPartSize:       ByteSize(chunktypes.DefaultMinPartSize),
		Concurrency:       chunktypes.DefaultConcurrency,
		ChunkSize:         64 * units.KiB,
		EmptyStreamPolicy: PolicyEmptyPart,
	},
	Keys: KeysConfig{
		PrefixParam:     keys.DefaultPrefixParam,
		AppendTimestamp: true,
	},
	Log: LogConfig{
		Level:  "info",
		Format: "text",
	},
}

// Load reads configuration in order of precedence:
// 1. Environment variables (highest precedence)
// 2. Configuration file
// 3. Default values (lowest precedence)
//
// An empty path searches the default locations. It returns the file that was
// used, or a note that only defaults applied.
func Load(path string) (*Config, string, error) {
	config, source, err := Read(path)
	if err != nil {
		return nil, "", err
	}

	if err := config.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, source, nil
}

// Read is Load without validation, for callers that apply further overrides.
func Read(path string) (*Config, string, error) {
	config := DefaultConfig

	source, err := loadFromFile(&config, path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if err := loadFromEnv(&config); err != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &config, source, nil
}

func loadFromFile(config *Config, explicit string) (string, error) {
	if explicit != "" {
		return explicit, readFile(config, explicit)
	}

	configPaths := []string{
		os.Getenv(EnvPrefix + "CONFIG"),
		"./chunkupload.yaml",
		"./config/chunkupload.yaml",
		"/etc/chunkupload/config.yaml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		return path, readFile(config, path)
	}

	return "built-in defaults (no config file found)", nil
}

func readFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func loadFromEnv(config *Config) error {
	stringVars := map[string]*string{
		"SERVER_ADDRESS":      &config.Server.Address,
		"UPLOAD_PATH":         &config.Server.UploadPath,
		"STORE_BACKEND":       &config.Store.Backend,
		"REGION":              &config.Store.Region,
		"ENDPOINT":            &config.Store.Endpoint,
		"BUCKET":              &config.Store.Bucket,
		"ACCESS_KEY_ID":       &config.Store.AccessKeyID,
		"SECRET_ACCESS_KEY":   &config.Store.SecretAccessKey,
		"EMPTY_STREAM_POLICY": &config.Upload.EmptyStreamPolicy,
		"KEY_ROOT":            &config.Keys.Root,
		"PREFIX_PARAM":        &config.Keys.PrefixParam,
		"LOG_LEVEL":           &config.Log.Level,
		"LOG_FORMAT":          &config.Log.Format,
	}
	for name, target := range stringVars {
		if val, ok := lookupEnv(name); ok {
			*target = val
		}
	}

	// Unprefixed AWS credentials only fill in what nothing else set.
	if config.Store.AccessKeyID == "" && config.Store.SecretAccessKey == "" {
		config.Store.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		config.Store.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	bools := map[string]*bool{
		"FORCE_PATH_STYLE":  &config.Store.ForcePathStyle,
		"DISABLE_SSL":       &config.Store.DisableSSL,
		"ALLOW_SMALL_PARTS": &config.Upload.AllowSmallParts,
		"APPEND_TIMESTAMP":  &config.Keys.AppendTimestamp,
		"UNIQUE_SUFFIX":     &config.Keys.UniqueSuffix,
	}
	for name, target := range bools {
		if val, ok := lookupEnv(name); ok {
			parsed, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*target = parsed
		}
	}

	ints := map[string]*int{
		"MAX_RETRIES": &config.Store.MaxRetries,
		"CONCURRENCY": &config.Upload.Concurrency,
		"QUEUE_SIZE":  &config.Upload.QueueSize,
	}
	for name, target := range ints {
		if val, ok := lookupEnv(name); ok {
			parsed, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*target = parsed
		}
	}

	sizes := map[string]*ByteSize{
		"MIN_PART_SIZE": &config.Upload.MinPartSize,
		"MAX_SIZE":      &config.Upload.MaxSize,
		"CHUNK_SIZE":    &config.Upload.ChunkSize,
	}
	for name, target := range sizes {
		if val, ok := lookupEnv(name); ok {
			parsed, err := ParseByteSize(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*target = parsed
		}
	}

	durations := map[string]*time.Duration{
		"STORE_TIMEOUT":    &config.Store.Timeout,
		"SHUTDOWN_TIMEOUT": &config.Server.ShutdownTimeout,
	}
	for name, target := range durations {
		if val, ok := lookupEnv(name); ok {
			parsed, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*target = parsed
		}
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendS3:
	case BackendMinio:
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store endpoint required for the %s backend", BackendMinio)
		}
	default:
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	if c.Store.Bucket == "" {
		return fmt.Errorf("store bucket required")
	}

	if c.Store.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.Store.MaxRetries)
	}

	if c.Upload.MinPartSize <= 0 {
		return fmt.Errorf("invalid min part size: %s", c.Upload.MinPartSize)
	}
	if c.Store.Backend == BackendS3 && !c.Upload.AllowSmallParts &&
		int64(c.Upload.MinPartSize) < chunktypes.DefaultMinPartSize {
		return fmt.Errorf("min part size %s is below the S3 minimum of %s; set upload.allowSmallParts to override",
			c.Upload.MinPartSize, ByteSize(chunktypes.DefaultMinPartSize))
	}

	if c.Upload.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d", c.Upload.Concurrency)
	}
	if c.Upload.QueueSize < 0 {
		return fmt.Errorf("invalid queue size: %d", c.Upload.QueueSize)
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size: %s", c.Upload.ChunkSize)
	}

	if _, err := c.emptyStreamPolicy(); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

func (c *Config) emptyStreamPolicy() (chunktypes.EmptyStreamPolicy, error) {
	switch c.Upload.EmptyStreamPolicy {
	case PolicyEmptyPart, "":
		return chunktypes.EmptyStreamUploadEmptyPart, nil
	case PolicySkip:
		return chunktypes.EmptyStreamSkipParts, nil
	default:
		return 0, fmt.Errorf("invalid empty stream policy: %s", c.Upload.EmptyStreamPolicy)
	}
}

// Options converts the configuration into client options.
func (c *Config) Options() []chunktypes.Option {
	policy, _ := c.emptyStreamPolicy()

	opts := []chunktypes.Option{
		chunkupload.WithRegion(c.Store.Region),
		chunkupload.WithForcePathStyle(c.Store.ForcePathStyle),
		chunkupload.WithDisableSSL(c.Store.DisableSSL),
		chunkupload.WithMaxRetries(c.Store.MaxRetries),
		chunkupload.WithMinPartSize(int64(c.Upload.MinPartSize)),
		chunkupload.WithConcurrency(c.Upload.Concurrency),
		chunkupload.WithMaxSize(int64(c.Upload.MaxSize)),
		chunkupload.WithChunkSize(int(c.Upload.ChunkSize)),
		chunkupload.WithEmptyStreamPolicy(policy),
	}
	if c.Store.Endpoint != "" {
		opts = append(opts, chunkupload.WithEndpoint(c.Store.Endpoint))
	}
	if c.Store.AccessKeyID != "" {
		opts = append(opts, chunkupload.WithCredentials(c.Store.AccessKeyID, c.Store.SecretAccessKey))
	}
	if c.Store.Timeout > 0 {
		opts = append(opts, chunkupload.WithTimeout(c.Store.Timeout))
	}
	if c.Upload.QueueSize > 0 {
		opts = append(opts, chunkupload.WithQueueSize(c.Upload.QueueSize))
	}
	return opts
}

// KeyPolicy returns the object key policy described by the keys section.
func (c *Config) KeyPolicy() keys.Policy {
	return keys.Policy{
		Root:            c.Keys.Root,
		PrefixParam:     c.Keys.PrefixParam,
		AppendTimestamp: c.Keys.AppendTimestamp,
		UniqueSuffix:    c.Keys.UniqueSuffix,
	}
}

// NewClient builds an upload client for the configured backend.
func (c *Config) NewClient(extra ...chunktypes.Option) (*chunkupload.Client, error) {
	opts := append(c.Options(), extra...)
	switch c.Store.Backend {
	case BackendMinio:
		// minio takes a host[:port], not a URL
		endpoint := strings.TrimPrefix(strings.TrimPrefix(c.Store.Endpoint, "https://"), "http://")
		return chunkupload.NewMinio(endpoint, opts...)
	default:
		return chunkupload.New(opts...)
	}
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
