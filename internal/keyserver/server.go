// Package keyserver releases key shares. A server holds one X25519 key; for
// every request it checks the session credential, asks the ledger whether the
// approval call holds for the requester, and only then re-encrypts its share
// to the credential's session key.
package keyserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/session"
)

// Approver evaluates the approval predicate. The ledger implements it.
type Approver interface {
	CheckApproval(ctx context.Context, proof []byte, id identity.Identity, requester string) (bool, error)
}

type Server struct {
	id        string
	programID string
	priv      []byte
	pub       []byte
	approver  Approver
	logger    logging.Logger
	now       func() time.Time
}

type Option func(*Server)

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a server from its 32-byte X25519 private key.
func New(id, programID string, priv []byte, approver Approver, opts ...Option) (*Server, error) {
	if id == "" || programID == "" {
		return nil, errors.New("keyserver: id and program id are required")
	}
	if approver == nil {
		return nil, errors.New("keyserver: approver is required")
	}
	pub, err := cryptox.X25519Public(priv)
	if err != nil {
		return nil, fmt.Errorf("keyserver: %w", err)
	}

	s := &Server{
		id:        id,
		programID: programID,
		priv:      append([]byte(nil), priv...),
		pub:       pub,
		approver:  approver,
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "keyserver", "server_id", id)
	return s, nil
}

func (s *Server) ID() string { return s.id }

func (s *Server) PublicKey(ctx context.Context) ([]byte, error) {
	return append([]byte(nil), s.pub...), nil
}

func (s *Server) Describe() *PublicKeyResponse {
	return &PublicKeyResponse{ServerID: s.id, PublicKey: append([]byte(nil), s.pub...)}
}

// FetchShare releases this server's share for req when the credential is
// valid and the ledger approves the call.
func (s *Server) FetchShare(ctx context.Context, req *ShareRequest) (*ShareResponse, error) {
	v, err := session.Verify(req.Token, s.programID, s.now())
	if err != nil {
		s.logger.Info(ctx, "credential rejected", "error", err)
		return nil, err
	}

	id, err := identity.Parse(req.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptCiphertext, err)
	}

	ok, err := s.approver.CheckApproval(ctx, req.ApprovalProof, id, v.Address)
	if err != nil {
		s.logger.Error(ctx, "approval check failed", "identity", id, "error", err)
		return nil, fmt.Errorf("%w: approval check: %v", common.ErrorInternal, err)
	}
	if !ok {
		s.logger.Info(ctx, "share withheld", "identity", id, "requester", v.Address)
		return nil, common.ErrAccessDenied
	}

	share, err := cryptox.Unwrap(s.priv, req.EphemeralKey, ShareInfo(id, req.Index, s.pub), req.WrappedShare)
	if err != nil {
		return nil, fmt.Errorf("%w: share not addressed to this server", common.ErrCorruptCiphertext)
	}
	defer common.WipeByteArray(share)

	ephPriv, ephPub, err := cryptox.GenerateX25519()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(ephPriv)

	wrapped, err := cryptox.Wrap(ephPriv, v.SessionKey, ShareInfo(id, req.Index, v.SessionKey), share)
	if err != nil {
		return nil, err
	}

	// the credential may have lapsed while the ledger was consulted
	if !s.now().Before(v.Expiry) {
		return nil, common.ErrExpiredCredential
	}

	s.logger.Info(ctx, "share released", "identity", id, "requester", v.Address, "index", req.Index)
	return &ShareResponse{
		ServerID:     s.id,
		Index:        req.Index,
		EphemeralKey: ephPub,
		WrappedShare: wrapped,
	}, nil
}
