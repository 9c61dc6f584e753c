// Package keyclient talks to a remote key server over gRPC and satisfies
// threshold.KeyServer, so the quorum can mix local and remote members.
package keyclient

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/keyserver"
	"github.com/dmitrijs2005/sealpost/internal/rpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const DefaultTimeout = 10 * time.Second

type GRPCClient struct {
	id          string
	endpointURL string
	timeout     time.Duration
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
}

type Option func(*GRPCClient)

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *GRPCClient) { c.timeout = d }
}

// WithDialOptions appends options used when the connection is created.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func withRequestID(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	if len(md.Get(common.RequestIDHeaderName)) > 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, common.RequestIDHeaderName, uuid.NewString())
}

func requestIDInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withRequestID(ctx), method, req, reply, cc, opts...)
}

// NewKeyServerClient prepares a connection to the key server id at
// endpointURL. The connection is established lazily on the first call.
func NewKeyServerClient(id, endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{id: id, endpointURL: endpointURL, timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(requestIDInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) ID() string { return s.id }

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// PublicKey fetches the server's X25519 key and checks that the endpoint
// really is the configured server.
func (s *GRPCClient) PublicKey(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp keyserver.PublicKeyResponse
	if err := s.conn.Invoke(ctx, rpc.GetPublicKeyFullMethod, &rpc.PublicKeyRequest{}, &resp); err != nil {
		return nil, s.mapError(err)
	}

	if resp.ServerID != s.id {
		return nil, fmt.Errorf("endpoint %s serves key server %q, expected %q", s.endpointURL, resp.ServerID, s.id)
	}

	return resp.PublicKey, nil
}

func (s *GRPCClient) FetchShare(ctx context.Context, req *keyserver.ShareRequest) (*keyserver.ShareResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp keyserver.ShareResponse
	if err := s.conn.Invoke(ctx, rpc.FetchShareFullMethod, req, &resp); err != nil {
		return nil, s.mapError(err)
	}

	return &resp, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if mapped := rpc.FromStatus(err); mapped != err {
		return mapped
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.id, err)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
