package keyserver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"github.com/dmitrijs2005/sealpost/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = "0xc0ffee"

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeApprover struct {
	allow     bool
	err       error
	requester string
	proof     []byte
	id        identity.Identity
}

func (f *fakeApprover) CheckApproval(_ context.Context, proof []byte, id identity.Identity, requester string) (bool, error) {
	f.proof, f.id, f.requester = proof, id, requester
	return f.allow, f.err
}

type env struct {
	server *Server
	appr   *fakeApprover
	cred   *session.Credential
	req    *ShareRequest
	share  []byte
}

func newEnv(t *testing.T) *env {
	t.Helper()
	priv, pub, err := cryptox.GenerateX25519()
	require.NoError(t, err)

	appr := &fakeApprover{allow: true}
	srv, err := New("ks-1", program, priv, appr, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	id, err := identity.Derive("0xabcdef", []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)

	share := bytes.Repeat([]byte{0x5a}, 32)
	ephPriv, ephPub, err := cryptox.GenerateX25519()
	require.NoError(t, err)
	wrapped, err := cryptox.Wrap(ephPriv, pub, ShareInfo(id, 2, pub), share)
	require.NoError(t, err)

	w, err := session.NewWallet(bytes.Repeat([]byte{4}, 32))
	require.NoError(t, err)
	c, err := session.Issue(w.Address(), program, 0, now)
	require.NoError(t, err)
	cred, err := c.Sign(context.Background(), w)
	require.NoError(t, err)
	tok, err := cred.Token()
	require.NoError(t, err)

	return &env{
		server: srv,
		appr:   appr,
		cred:   cred,
		share:  share,
		req: &ShareRequest{
			Identity:      id.String(),
			Token:         tok,
			ApprovalProof: []byte("proof"),
			EphemeralKey:  ephPub,
			Index:         2,
			WrappedShare:  wrapped,
		},
	}
}

func TestFetchShare_Released(t *testing.T) {
	e := newEnv(t)

	resp, err := e.server.FetchShare(context.Background(), e.req)
	require.NoError(t, err)
	assert.Equal(t, "ks-1", resp.ServerID)
	assert.Equal(t, uint32(2), resp.Index)

	id := identity.Identity(e.req.Identity)
	got, err := cryptox.Unwrap(e.cred.SessionPrivateKey(), resp.EphemeralKey,
		ShareInfo(id, 2, e.cred.SessionKey), resp.WrappedShare)
	require.NoError(t, err)
	assert.Equal(t, e.share, got)

	assert.Equal(t, e.cred.Address, e.appr.requester)
	assert.Equal(t, []byte("proof"), e.appr.proof)
	assert.Equal(t, id, e.appr.id)
}

func TestFetchShare_Denied(t *testing.T) {
	e := newEnv(t)
	e.appr.allow = false

	_, err := e.server.FetchShare(context.Background(), e.req)
	require.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestFetchShare_ApproverError(t *testing.T) {
	e := newEnv(t)
	e.appr.err = errors.New("db down")

	_, err := e.server.FetchShare(context.Background(), e.req)
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestFetchShare_Credential(t *testing.T) {
	e := newEnv(t)

	expired, err := New("ks-1", program, bytes.Repeat([]byte{1}, 32), e.appr,
		WithClock(func() time.Time { return now.Add(time.Hour) }))
	require.NoError(t, err)
	_, err = expired.FetchShare(context.Background(), e.req)
	require.ErrorIs(t, err, common.ErrExpiredCredential)

	otherScope, err := New("ks-1", "0xdead", bytes.Repeat([]byte{1}, 32), e.appr,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = otherScope.FetchShare(context.Background(), e.req)
	require.ErrorIs(t, err, common.ErrInvalidCredential)

	bad := *e.req
	bad.Token = "garbage"
	_, err = e.server.FetchShare(context.Background(), &bad)
	require.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestFetchShare_WrongShare(t *testing.T) {
	e := newEnv(t)

	wrongIndex := *e.req
	wrongIndex.Index = 3
	_, err := e.server.FetchShare(context.Background(), &wrongIndex)
	require.ErrorIs(t, err, common.ErrCorruptCiphertext)

	badIdentity := *e.req
	badIdentity.Identity = "zz"
	_, err = e.server.FetchShare(context.Background(), &badIdentity)
	require.ErrorIs(t, err, common.ErrCorruptCiphertext)
}

func TestNew_Validation(t *testing.T) {
	appr := &fakeApprover{}
	_, err := New("", program, bytes.Repeat([]byte{1}, 32), appr)
	require.Error(t, err)
	_, err = New("ks", program, bytes.Repeat([]byte{1}, 32), nil)
	require.Error(t, err)
	_, err = New("ks", program, []byte{1}, appr)
	require.Error(t, err)

	s, err := New("ks", program, bytes.Repeat([]byte{1}, 32), appr)
	require.NoError(t, err)
	pub, err := s.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pub, s.Describe().PublicKey)
	assert.Equal(t, "ks", s.ID())
}
