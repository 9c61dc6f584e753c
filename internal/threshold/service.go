// Package threshold encrypts letters to a quorum of key servers and decrypts
// them once enough servers release their shares. The service forwards the
// approval proof untouched; access decisions belong to the key servers and
// the ledger behind them.
package threshold

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"github.com/dmitrijs2005/sealpost/internal/keyserver"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/session"
	"github.com/dmitrijs2005/sealpost/internal/shamir"
	"golang.org/x/sync/errgroup"
)

// KeyServer is a member of the quorum, local or remote.
type KeyServer interface {
	ID() string
	PublicKey(ctx context.Context) ([]byte, error)
	FetchShare(ctx context.Context, req *keyserver.ShareRequest) (*keyserver.ShareResponse, error)
}

type Service struct {
	servers []KeyServer
	logger  logging.Logger
	now     func() time.Time
	rand    io.Reader
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand sets the source used for identity nonces and secrets.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

func NewService(servers []KeyServer, opts ...Option) *Service {
	s := &Service{
		servers: servers,
		logger:  logging.Discard(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "threshold")
	return s
}

type serverKey struct {
	server KeyServer
	pub    []byte
}

// reachable fetches the public keys of all servers concurrently and returns
// the ones that answered, in configuration order.
func (s *Service) reachable(ctx context.Context) []serverKey {
	keys := make([]serverKey, len(s.servers))

	var g errgroup.Group
	for i, ks := range s.servers {
		g.Go(func() error {
			pub, err := ks.PublicKey(ctx)
			if err != nil || len(pub) != 32 {
				s.logger.Warn(ctx, "key server unreachable", "server_id", ks.ID(), "error", err)
				return nil
			}
			keys[i] = serverKey{server: ks, pub: pub}
			return nil
		})
	}
	_ = g.Wait()

	out := keys[:0]
	for _, k := range keys {
		if k.server != nil {
			out = append(out, k)
		}
	}
	return out
}

func demKey(secret []byte, id identity.Identity) ([]byte, error) {
	return cryptox.DeriveKey(secret, nil, append([]byte("sealpost/dem/v1"), id.Bytes()...), cryptox.KeySize)
}

// Encrypt seals plaintext under a fresh identity for policyObjectID so that
// any threshold of the reachable key servers can release the key.
func (s *Service) Encrypt(ctx context.Context, policyObjectID, programID string, plaintext []byte, threshold int) (*EncryptedObject, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("threshold must be positive, got %d", threshold)
	}
	if programID == "" {
		return nil, errors.New("program id is empty")
	}

	id, err := s.newIdentity(policyObjectID)
	if err != nil {
		return nil, err
	}

	keys := s.reachable(ctx)
	if len(keys) < threshold {
		return nil, fmt.Errorf("%w: %d of %d key servers reachable, need %d",
			common.ErrEncryptionUnavailable, len(keys), len(s.servers), threshold)
	}

	secret, err := shamir.RandomSecret(s.rand)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	shares, err := shamir.Split(secret, threshold, len(keys), s.rand)
	if err != nil {
		return nil, err
	}

	ephPriv, ephPub, err := cryptox.GenerateX25519()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(ephPriv)

	obj := &EncryptedObject{
		Version:      ObjectVersion,
		ProgramID:    programID,
		Identity:     id,
		Threshold:    uint32(threshold),
		EphemeralKey: ephPub,
	}
	for i, sh := range shares {
		k := keys[i]
		wrapped, err := cryptox.Wrap(ephPriv, k.pub, keyserver.ShareInfo(id, sh.Index, k.pub), sh.Value)
		if err != nil {
			return nil, fmt.Errorf("wrap share for %s: %w", k.server.ID(), err)
		}
		obj.Shares = append(obj.Shares, WrappedShare{ServerID: k.server.ID(), Index: sh.Index, Data: wrapped})
	}

	key, err := demKey(secret, id)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	obj.Nonce, obj.Ciphertext, err = cryptox.Seal(key, plaintext, obj.aad())
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "encrypted", "identity", id, "threshold", threshold, "servers", len(keys))
	return obj, nil
}

func (s *Service) newIdentity(policyObjectID string) (identity.Identity, error) {
	if s.rand != nil {
		return identity.NewFromReader(policyObjectID, s.rand)
	}
	return identity.New(policyObjectID)
}

type shareResult struct {
	share *shamir.Share
	err   error
}

// Decrypt recovers the plaintext of an encoded EncryptedObject. The effective
// threshold is the larger of threshold and the one recorded in the object.
func (s *Service) Decrypt(ctx context.Context, data []byte, cred *session.Credential, approvalProof []byte, threshold int) ([]byte, error) {
	obj, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if cred == nil || !cred.Signed() {
		return nil, fmt.Errorf("%w: credential is not signed", common.ErrInvalidCredential)
	}
	if cred.Expired(s.now()) {
		return nil, common.ErrExpiredCredential
	}
	token, err := cred.Token()
	if err != nil {
		return nil, err
	}

	need := max(threshold, int(obj.Threshold))

	byID := make(map[string]KeyServer, len(s.servers))
	for _, ks := range s.servers {
		byID[ks.ID()] = ks
	}

	type target struct {
		server KeyServer
		share  WrappedShare
	}
	var targets []target
	for _, sh := range obj.Shares {
		if ks, ok := byID[sh.ServerID]; ok {
			targets = append(targets, target{server: ks, share: sh})
		}
	}
	if len(targets) < need {
		return nil, fmt.Errorf("%w: %d of %d share holders configured, need %d",
			common.ErrInsufficientShares, len(targets), len(obj.Shares), need)
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan shareResult, len(targets))
	var g errgroup.Group
	for _, tg := range targets {
		g.Go(func() error {
			results <- s.fetchOne(fetchCtx, obj, tg.server, tg.share, token, approvalProof, cred)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var (
		collected []shamir.Share
		failures  []error
	)
	for r := range results {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		collected = append(collected, *r.share)
		if len(collected) >= need {
			cancel()
			break
		}
	}

	if len(collected) < need {
		return nil, classify(failures, len(collected), need)
	}

	// a quorum that answered after expiry does not count
	if cred.Expired(s.now()) {
		return nil, common.ErrExpiredCredential
	}

	secret, err := shamir.Combine(collected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptCiphertext, err)
	}
	defer common.WipeByteArray(secret)

	key, err := demKey(secret, obj.Identity)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.Open(key, obj.Nonce, obj.Ciphertext, obj.aad())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptCiphertext, err)
	}
	return plaintext, nil
}

func (s *Service) fetchOne(ctx context.Context, obj *EncryptedObject, ks KeyServer, sh WrappedShare, token string, proof []byte, cred *session.Credential) shareResult {
	var res shareResult

	resp, err := ks.FetchShare(ctx, &keyserver.ShareRequest{
		Identity:      string(obj.Identity),
		Token:         token,
		ApprovalProof: proof,
		EphemeralKey:  obj.EphemeralKey,
		Index:         sh.Index,
		WrappedShare:  sh.Data,
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Info(ctx, "share not released", "server_id", ks.ID(), "error", err)
		}
		res.err = err
		return res
	}
	if resp.Index != sh.Index {
		res.err = fmt.Errorf("server %s answered for index %d, asked %d", ks.ID(), resp.Index, sh.Index)
		return res
	}

	value, err := cryptox.Unwrap(cred.SessionPrivateKey(), resp.EphemeralKey,
		keyserver.ShareInfo(obj.Identity, sh.Index, cred.SessionKey), resp.WrappedShare)
	if err != nil {
		res.err = fmt.Errorf("server %s: unreadable share: %w", ks.ID(), err)
		return res
	}
	res.share = &shamir.Share{Index: sh.Index, Value: value}
	return res
}

// classify turns per-server failures into one error. A denial from any
// server wins, then expiry; everything else is a shortage of shares.
func classify(failures []error, got, need int) error {
	for _, err := range failures {
		if errors.Is(err, common.ErrAccessDenied) {
			return common.ErrAccessDenied
		}
	}
	for _, err := range failures {
		if errors.Is(err, common.ErrExpiredCredential) {
			return common.ErrExpiredCredential
		}
	}
	if len(failures) == 0 {
		return fmt.Errorf("%w: got %d of %d", common.ErrInsufficientShares, got, need)
	}
	return fmt.Errorf("%w: got %d of %d: %w", common.ErrInsufficientShares, got, need, errors.Join(failures...))
}
