// Package grpcapi exposes the standard gRPC health service for the
// transcription endpoint.
package grpcapi

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"media-transcription-service/internal/observability"
	"media-transcription-service/internal/observability/metrics"
)

// ServiceName is the health-check name of the transcription service.
const ServiceName = "media.transcription.TranscriptionService"

// Health tracks the serving status reported to health checkers. It starts
// NOT_SERVING until SetServing(true) is called.
type Health struct {
	srv *health.Server
}

// NewHealth creates a health reporter in the NOT_SERVING state.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.SetServing(false)
	return h
}

// SetServing flips the status of the overall server and ServiceName.
func (h *Health) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

// NewServer creates a gRPC server with logging and metrics interceptors,
// the health service and reflection registered.
func NewServer(h *Health, m *metrics.Metrics, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)
	server := grpc.NewServer(opts...)

	grpc_health_v1.RegisterHealthServer(server, h.srv)

	// grpcurl and similar tools
	reflection.Register(server)
	return server
}
