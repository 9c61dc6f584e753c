package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	// ed25519Flag is the signature scheme byte in front of serialized
	// signatures and public keys.
	ed25519Flag byte = 0x00

	SignatureSize = 1 + ed25519.SignatureSize + ed25519.PublicKeySize
)

// personalMessageIntent prefixes every personal message before hashing
// (scope=PersonalMessage, version=0, app=Sui).
var personalMessageIntent = []byte{3, 0, 0}

var ErrBadSignature = errors.New("bad wallet signature")

// Signer is the holder of a wallet key.
type Signer interface {
	Address() string
	SignPersonalMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Wallet is an in-process Ed25519 Signer.
type Wallet struct {
	priv ed25519.PrivateKey
	addr string
}

// NewWallet restores a wallet from a 32-byte seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Wallet{priv: priv, addr: AddressOf(priv.Public().(ed25519.PublicKey))}, nil
}

// GenerateWallet creates a wallet from r, or crypto/rand when r is nil.
func GenerateWallet(r io.Reader) (*Wallet, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return NewWallet(seed)
}

func (w *Wallet) Address() string { return w.addr }

// Seed exposes the seed for the keystore.
func (w *Wallet) Seed() []byte { return w.priv.Seed() }

func (w *Wallet) SignPersonalMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return signPersonal(w.priv, msg), nil
}

// AddressOf derives the account address of an Ed25519 public key.
func AddressOf(pub ed25519.PublicKey) string {
	h := blake2b.Sum256(append([]byte{ed25519Flag}, pub...))
	return "0x" + hex.EncodeToString(h[:])
}

func personalDigest(msg []byte) []byte {
	buf := make([]byte, 0, len(personalMessageIntent)+binaryUvarintLen(uint64(len(msg)))+len(msg))
	buf = append(buf, personalMessageIntent...)
	buf = appendUleb128(buf, uint64(len(msg)))
	buf = append(buf, msg...)
	h := blake2b.Sum256(buf)
	return h[:]
}

func signPersonal(priv ed25519.PrivateKey, msg []byte) []byte {
	sig := ed25519.Sign(priv, personalDigest(msg))
	out := make([]byte, 0, SignatureSize)
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	return append(out, priv.Public().(ed25519.PublicKey)...)
}

// VerifyPersonalMessage checks a serialized signature over msg and that the
// embedded key belongs to address.
func VerifyPersonalMessage(address string, msg, sig []byte) error {
	if len(sig) != SignatureSize || sig[0] != ed25519Flag {
		return ErrBadSignature
	}
	raw := sig[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(sig[1+ed25519.SignatureSize:])

	if AddressOf(pub) != address {
		return fmt.Errorf("%w: key does not match address", ErrBadSignature)
	}
	if !ed25519.Verify(pub, personalDigest(msg), raw) {
		return ErrBadSignature
	}
	return nil
}

func appendUleb128(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func binaryUvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
