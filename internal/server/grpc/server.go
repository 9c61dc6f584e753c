package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/sealpost/internal/keyserver"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/rpc"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address string
	keys    *keyserver.Server
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, ks *keyserver.Server) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		keys:    ks,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts key server calls on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.loggingInterceptor))

	rpc.RegisterKeyServerServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String(), "server_id", s.keys.ID())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
