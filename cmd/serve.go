package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	grpcapi "media-transcription-service/internal/api/grpc"
	"media-transcription-service/internal/app"
	"media-transcription-service/internal/backends"
	apihttp "media-transcription-service/internal/http"
	"media-transcription-service/internal/observability"
	"media-transcription-service/internal/observability/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transcription server",
	Long: `Load the speech models and serve POST /transcribe/.

The gRPC health service listens on GRPC_PORT and Prometheus metrics on
METRICS_ADDR. Startup fails if the Vosk model directory is missing.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, backends.Loader{})
	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)
	obsServer.Start()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		application.Shutdown()
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	grpcServer := grpcapi.NewServer(application.Health(), metrics.DefaultMetrics)
	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health service started")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve failed")
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Service.HTTPPort,
		Handler: apihttp.NewRouter(application, cfg.Service.MaxUploadBytes),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Media transcription service started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not drain before timeout")
	}
	application.Shutdown()
	grpcServer.GracefulStop()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("observability server shutdown failed")
	}
	return err
}
