package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/med-assist/backend/pkg/log"
	"github.com/zhouzirui/med-assist/backend/pkg/srv"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Opens the chat log store, connects the completion provider and serves the chat, dashboard and health endpoints until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var flushLog func()
	ctx, flushLog = setupLogger(ctx, cfg)
	defer flushLog()

	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting med-assist")

	services, err := NewServices(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize services")
		return err
	}

	errCh := make(chan error, 1)
	srv.StartServices(ctx, services, errCh)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error().Err(err).Msg("service failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	srv.ShutdownServices(shutdownCtx, services)

	logger.Info().Msg("med-assist has been shut down gracefully")
	return err
}
