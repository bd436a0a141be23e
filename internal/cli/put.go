package cli

import (
	"fmt"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
)

type putOptions struct {
	key         string
	bucket      string
	contentType string
}

func newPutCmd(root *rootOptions) *cobra.Command {
	opts := &putOptions{}

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a local file",
		Long: `Upload a local file as a streaming multipart upload.

Without --key the object key is derived from the file name using the keys
section of the configuration.

Examples:
  chunkuploadd put backup.tar.gz
  chunkuploadd put --bucket archive --key db/latest.sql dump.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "Object key")
	cmd.Flags().StringVarP(&opts.bucket, "bucket", "b", "", "Target bucket; overrides the configuration")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "Content type; detected from the file when empty")

	return cmd
}

func runPut(cmd *cobra.Command, root *rootOptions, opts *putOptions, file string) error {
	cfg, _, err := root.readConfig()
	if err != nil {
		return err
	}
	if opts.bucket != "" {
		cfg.Store.Bucket = opts.bucket
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	path, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", file, err)
	}

	key := opts.key
	if key == "" {
		key, err = cfg.KeyPolicy().Key("", filepath.Base(path))
		if err != nil {
			return err
		}
	}

	client, err := clientFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create upload client: %w", err)
	}
	defer client.Close()

	var sessionOpts []chunktypes.SessionOption
	if opts.contentType != "" {
		sessionOpts = append(sessionOpts, chunkupload.WithContentType(opts.contentType))
	}

	result, err := client.UploadFile(cmd.Context(), cfg.Store.Bucket, key, filepath.ToSlash(path), sessionOpts...)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Uploaded %s to %s/%s\n", file, result.Bucket, result.Key)
	fmt.Fprintf(out, "  Size:         %s (%d bytes)\n", units.BytesSize(float64(result.Size)), result.Size)
	fmt.Fprintf(out, "  Parts:        %d\n", len(result.Parts))
	fmt.Fprintf(out, "  Content type: %s\n", result.ContentType)
	fmt.Fprintf(out, "  ETag:         %s\n", result.ETag)
	if result.Location != "" {
		fmt.Fprintf(out, "  Location:     %s\n", result.Location)
	}
	fmt.Fprintf(out, "  Duration:     %s\n", result.Duration)
	return nil
}
