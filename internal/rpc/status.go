package rpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "sealpost"

var reasons = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{common.ErrAccessDenied, codes.PermissionDenied, "ACCESS_DENIED"},
	{common.ErrExpiredCredential, codes.Unauthenticated, "EXPIRED_CREDENTIAL"},
	{common.ErrInvalidCredential, codes.Unauthenticated, "INVALID_CREDENTIAL"},
	{common.ErrCorruptCiphertext, codes.InvalidArgument, "CORRUPT_CIPHERTEXT"},
}

// ToStatus converts a key server error into a gRPC status error carrying the
// sentinel's reason. Unknown errors become Internal without their message.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			st := status.New(r.code, err.Error())
			if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: r.reason, Domain: errorDomain}); derr == nil {
				st = detailed
			}
			return st.Err()
		}
	}
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

// FromStatus maps a status error returned by a key server back onto the
// common sentinels. Transport failures are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, r := range reasons {
			if info.GetReason() == r.reason {
				return wrap(r.err, st)
			}
		}
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return wrap(common.ErrAccessDenied, st)
	case codes.Unauthenticated:
		return wrap(common.ErrInvalidCredential, st)
	case codes.InvalidArgument:
		return wrap(common.ErrCorruptCiphertext, st)
	}
	return err
}

type statusError struct {
	sentinel error
	st       *status.Status
}

func (e *statusError) Error() string { return e.st.Message() }

func (e *statusError) Unwrap() error { return e.sentinel }

func (e *statusError) GRPCStatus() *status.Status { return e.st }

func wrap(sentinel error, st *status.Status) error {
	return &statusError{sentinel: sentinel, st: st}
}
