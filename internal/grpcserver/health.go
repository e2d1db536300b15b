package grpcserver

import (
	"fmt"
	"net"

	"cooperative-ai/backend/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the chat API reports under in the health service
const ServiceName = "cooperative.ai.chat"

// Server exposes the standard gRPC health service for orchestrators that
// probe over gRPC instead of HTTP
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *logger.Logger
}

// New creates the server with every service marked NOT_SERVING
func New(log *logger.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips the overall and chat service status
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving on lis
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on :port and serves
func (s *Server) ListenAndServe(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	return s.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains in-flight RPCs
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
