package grpcapi

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"media-transcription-service/internal/observability/metrics"
)

func startServer(t *testing.T, h *Health) grpc_health_v1.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := NewServer(h, metrics.DefaultMetrics)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_Lifecycle(t *testing.T) {
	h := NewHealth()
	client := startServer(t, h)

	for _, svc := range []string{"", ServiceName} {
		if got := check(t, client, svc); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
			t.Errorf("%q before start: expected NOT_SERVING, got %v", svc, got)
		}
	}

	h.SetServing(true)
	for _, svc := range []string{"", ServiceName} {
		if got := check(t, client, svc); got != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Errorf("%q after start: expected SERVING, got %v", svc, got)
		}
	}

	h.Shutdown()
	h.SetServing(true)
	if got := check(t, client, ServiceName); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after shutdown: expected NOT_SERVING, got %v", got)
	}
}

func TestHealth_UnknownService(t *testing.T) {
	client := startServer(t, NewHealth())
	_, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "other.Service"})
	if err == nil {
		t.Error("expected NotFound for an unregistered service")
	}
}
