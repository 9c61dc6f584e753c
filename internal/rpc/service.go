// Package rpc is the key server wire contract shared by the gRPC server and
// its clients: service descriptor, codec and error mapping.
package rpc

import (
	"context"

	"github.com/dmitrijs2005/sealpost/internal/keyserver"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	ServiceName = "sealpost.KeyServer"

	GetPublicKeyFullMethod = "/" + ServiceName + "/GetPublicKey"
	FetchShareFullMethod   = "/" + ServiceName + "/FetchShare"
)

type PublicKeyRequest struct{}

func (*PublicKeyRequest) Marshal() []byte { return nil }

// Unmarshal accepts any well-formed message; the request has no fields.
func (r *PublicKeyRequest) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return keyserver.ErrMalformedMessage
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return keyserver.ErrMalformedMessage
		}
		b = b[m:]
	}
	return nil
}

// KeyServerServer is implemented by the transport wrapping a key server.
type KeyServerServer interface {
	GetPublicKey(context.Context, *PublicKeyRequest) (*keyserver.PublicKeyResponse, error)
	FetchShare(context.Context, *keyserver.ShareRequest) (*keyserver.ShareResponse, error)
}

func RegisterKeyServerServer(s grpc.ServiceRegistrar, srv KeyServerServer) {
	s.RegisterService(&KeyServerServiceDesc, srv)
}

func getPublicKeyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublicKeyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KeyServerServer).GetPublicKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetPublicKeyFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KeyServerServer).GetPublicKey(ctx, req.(*PublicKeyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchShareHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(keyserver.ShareRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KeyServerServer).FetchShare(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FetchShareFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KeyServerServer).FetchShare(ctx, req.(*keyserver.ShareRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var KeyServerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KeyServerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPublicKey", Handler: getPublicKeyHandler},
		{MethodName: "FetchShare", Handler: fetchShareHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sealpost/keyserver",
}
