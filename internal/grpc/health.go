package grpc

import (
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported by the health service next to the overall "" entry.
const ServiceName = "user_manager.v1.UserManager"

// NewServer builds a gRPC server exposing grpc.health.v1.Health. When
// serviceToken is set every call must carry it in x-service-token.
func NewServer(serviceToken string, log zerolog.Logger) (*grpc.Server, *health.Server, error) {
	log = log.With().Str("component", "grpc").Logger()
	interceptors := []grpc.UnaryServerInterceptor{NewLoggingUnaryInterceptor(log)}
	if serviceToken != "" {
		serviceAuth, err := NewServiceAuthUnaryInterceptor(serviceToken)
		if err != nil {
			return nil, nil, err
		}
		interceptors = append(interceptors, serviceAuth)
	} else {
		log.Warn().Msg("SERVICE_AUTH_TOKEN not set, grpc health is unauthenticated")
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}
