package grpc

import (
	"context"

	"github.com/dmitrijs2005/sealpost/internal/keyserver"
	"github.com/dmitrijs2005/sealpost/internal/rpc"
)

func (s *GRPCServer) GetPublicKey(ctx context.Context, _ *rpc.PublicKeyRequest) (*keyserver.PublicKeyResponse, error) {
	return s.keys.Describe(), nil
}

func (s *GRPCServer) FetchShare(ctx context.Context, req *keyserver.ShareRequest) (*keyserver.ShareResponse, error) {
	resp, err := s.keys.FetchShare(ctx, req)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return resp, nil
}
