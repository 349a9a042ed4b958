package server

import (
	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/erain9/swapbook/pkg/otel"
	"google.golang.org/grpc"
)

// RegisterOrderBookService registers the order book service with the provided gRPC server
func RegisterOrderBookService(grpcServer *grpc.Server, service *GRPCOrderBookService) {
	api.RegisterOrderBookServiceServer(grpcServer, service)
}

// NewGRPCServer creates a gRPC server with the logging, rate limiting and
// telemetry hooks installed and the order book service registered. A nil
// limiter disables rate limiting.
func NewGRPCServer(service *GRPCOrderBookService, limiter *RateLimiter, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{logging.UnaryServerInterceptor()}
	if limiter != nil {
		interceptors = append(interceptors, limiter.UnaryServerInterceptor())
	}

	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otel.NewGRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	serverOpts = append(serverOpts, opts...)

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterOrderBookService(grpcServer, service)
	return grpcServer
}
