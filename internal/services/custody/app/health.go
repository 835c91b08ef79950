package app

import (
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the health endpoint.
const HealthService = "custody"

// healthServer serves grpc.health.v1 next to the MCP transport.
type healthServer struct {
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
	done     chan error
}

func startHealth(addr string, logger *zap.Logger) (*healthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on health addr %s: %w", addr, err)
	}
	server := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	status := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, status)
	status.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	status.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	h := &healthServer{listener: listener, server: server, health: status, done: make(chan error, 1)}
	logger.Info("custody health server listening", zap.String("addr", listener.Addr().String()))
	go func() {
		h.done <- server.Serve(listener)
	}()
	return h, nil
}

// Addr returns the bound listener address.
func (h *healthServer) Addr() string {
	if h == nil || h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop reports NOT_SERVING and drains in-flight checks.
func (h *healthServer) Stop() error {
	if h == nil {
		return nil
	}
	h.health.Shutdown()
	h.server.GracefulStop()
	if err := <-h.done; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}
