// Package cli implements the chunkuploadd command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
}

// clientFactory builds the upload client for a loaded configuration.
var clientFactory = func(cfg *config.Config, logger *slog.Logger) (*chunkupload.Client, error) {
	return cfg.NewClient(chunkupload.WithLogger(logger))
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chunkuploadd",
		Short: "Stream uploads into S3 compatible storage",
		Long: `chunkuploadd streams files into S3 compatible object storage as multipart
uploads while they are still being received. Parts are uploaded concurrently
and only the current part is held in memory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error); overrides the configuration")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newPutCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// readConfig loads the configuration and applies the persistent flags. The
// caller validates once its own overrides are in place.
func (o *rootOptions) readConfig() (*config.Config, string, error) {
	cfg, source, err := config.Read(o.configPath)
	if err != nil {
		return nil, "", err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, source, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}
