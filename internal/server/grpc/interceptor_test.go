package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type recordingLogger struct {
	nopLogger
	mu    *sync.Mutex
	warns *[]string
	infos *[]string
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, warns: &[]string{}, infos: &[]string{}}
}

func (r recordingLogger) Info(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.infos = append(*r.infos, msg)
}

func (r recordingLogger) Warn(_ context.Context, msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.warns = append(*r.warns, msg)
}

func (r recordingLogger) With(...any) logging.Logger { return r }

func newTestServer(l logging.Logger) *GRPCServer {
	return &GRPCServer{logger: l}
}

func TestRequestIDInterceptor_UsesIncomingID(t *testing.T) {
	s := newTestServer(nopLogger{})

	md := metadata.New(map[string]string{common.RequestIDHeaderName: "abc"})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: "/sealpost.KeyServer/FetchShare"}

	var got string
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got = RequestIDFromContext(ctx)
		return "ok", nil
	}

	resp, err := s.requestIDInterceptor(ctx, nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if got != "abc" {
		t.Fatalf("request id not propagated: got %q", got)
	}
}

func TestRequestIDInterceptor_GeneratesID(t *testing.T) {
	s := newTestServer(nopLogger{})
	info := &grpc.UnaryServerInfo{FullMethod: "/sealpost.KeyServer/GetPublicKey"}

	var got string
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got = RequestIDFromContext(ctx)
		return nil, nil
	}

	if _, err := s.requestIDInterceptor(context.Background(), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	l := newRecordingLogger()
	s := newTestServer(l)
	info := &grpc.UnaryServerInfo{FullMethod: "/sealpost.KeyServer/FetchShare"}

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	denied := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.PermissionDenied, "access denied")
	}

	if _, err := s.loggingInterceptor(context.Background(), nil, info, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.loggingInterceptor(context.Background(), nil, info, denied)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("error not passed through: %v", err)
	}

	if len(*l.infos) != 1 || (*l.infos)[0] != "call served" {
		t.Fatalf("unexpected info logs: %v", *l.infos)
	}
	if len(*l.warns) != 1 || (*l.warns)[0] != "call failed" {
		t.Fatalf("unexpected warn logs: %v", *l.warns)
	}
}
