package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		Long: `Run the HTTP upload server.

Files posted as multipart/form-data to the upload path are streamed into the
configured bucket. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  chunkuploadd serve --config /etc/chunkupload/config.yaml
  curl -F file=@report.pdf 'http://localhost:8080/upload?__prefix=reports'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, source, err := opts.readConfig()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logger.Info("configuration loaded", "source", source)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address; overrides the configuration")
	return cmd
}

// serve runs the upload server until ctx is done, then drains in-flight
// requests for at most the configured shutdown timeout.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	log := logger.With("mode", "server")

	client, err := clientFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create upload client: %w", err)
	}
	defer client.Close()

	handler := httpapi.New(client, cfg.Store.Bucket,
		httpapi.WithKeyPolicy(cfg.KeyPolicy()),
		httpapi.WithLogger(logger),
		httpapi.WithUploadPath(cfg.Server.UploadPath),
	)

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	log.Info("server started",
		"address", ln.Addr().String(),
		"bucket", cfg.Store.Bucket,
		"backend", cfg.Store.Backend,
		"upload_path", cfg.Server.UploadPath)

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("received shutdown signal, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
