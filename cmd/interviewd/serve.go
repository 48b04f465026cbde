package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/InterviewKit/pkg/config"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/version"
	interviewserver "github.com/AltairaLabs/InterviewKit/server/interview"
)

const defaultConfigFile = "interviewd.yaml"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve interview sessions",
	Long: `Loads the InterviewServer manifest and serves interview sessions until
SIGINT or SIGTERM. Live sessions are ended and finalized before exit.

Examples:
  interviewd serve
  interviewd serve --config deploy/interviewd.yaml --addr :9000`,
	RunE: runServe,
}

var (
	serveConfigFile string
	serveAddr       string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", defaultConfigFile, "InterviewServer manifest")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides spec.server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveConfigFile)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := logger.Configure(cfg.Logging.LoggerSpec()); err != nil {
		return err
	}
	logger.Info("interviewd starting", version.Get().LogAttrs()...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := interviewserver.Build(ctx, cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	}
	return serve(ctx, srv, ln, cfg.Server.ShutdownTimeout)
}

// serve runs srv on ln until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv *interviewserver.Server, ln net.Listener, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if serveErr == nil {
			return nil
		}
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", timeout.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if serveErr != nil {
		return serveErr
	}
	return <-errCh
}
