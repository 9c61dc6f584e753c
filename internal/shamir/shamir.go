// Package shamir shares 32-byte secrets with Shamir's scheme over the
// scalar field of edwards25519. Shares are evaluated at x = 1..n.
package shamir

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/random"
)

// SecretSize is the byte length of secrets and share values.
const SecretSize = 32

var (
	ErrInvalidParams  = errors.New("invalid sharing parameters")
	ErrTooFewShares   = errors.New("not enough shares")
	ErrDuplicateShare = errors.New("duplicate share index")
	ErrInvalidShare   = errors.New("invalid share")
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// Share is one evaluation of the sharing polynomial.
type Share struct {
	Index uint32
	Value []byte
}

func stream(r io.Reader) cipher.Stream {
	if r == nil {
		return suite.RandomStream()
	}
	return random.New(r)
}

// decodeScalar accepts only canonical encodings.
func decodeScalar(b []byte) (kyber.Scalar, bool) {
	if len(b) != SecretSize {
		return nil, false
	}
	s := suite.Scalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, false
	}
	reduced, err := suite.Scalar().Add(s, suite.Scalar().Zero()).MarshalBinary()
	if err != nil || !bytes.Equal(reduced, b) {
		return nil, false
	}
	return s, true
}

func encodeScalar(s kyber.Scalar) ([]byte, error) {
	return s.MarshalBinary()
}

// RandomSecret returns a uniformly random field element.
func RandomSecret(r io.Reader) ([]byte, error) {
	return encodeScalar(suite.Scalar().Pick(stream(r)))
}

// Split shares secret so that any t of the n shares recover it.
func Split(secret []byte, t, n int, r io.Reader) ([]Share, error) {
	if t < 1 || n < t || n > 255 {
		return nil, fmt.Errorf("%w: t=%d n=%d", ErrInvalidParams, t, n)
	}
	s, ok := decodeScalar(secret)
	if !ok {
		return nil, fmt.Errorf("%w: secret outside field", ErrInvalidParams)
	}

	poly := share.NewPriPoly(suite, t, s, stream(r))

	shares := make([]Share, 0, n)
	for _, ps := range poly.Shares(n) {
		v, err := encodeScalar(ps.V)
		if err != nil {
			return nil, err
		}
		shares = append(shares, Share{Index: uint32(ps.I + 1), Value: v})
	}
	return shares, nil
}

// Combine recovers the secret from distinct shares by interpolating at zero.
// All given shares are used, so it cannot tell whether enough were given;
// callers enforce the threshold.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrTooFewShares
	}

	pri := make([]*share.PriShare, 0, len(shares))
	seen := make(map[uint32]struct{}, len(shares))
	for _, sh := range shares {
		if sh.Index == 0 || sh.Index > 255 {
			return nil, ErrInvalidShare
		}
		if _, dup := seen[sh.Index]; dup {
			return nil, ErrDuplicateShare
		}
		seen[sh.Index] = struct{}{}

		v, ok := decodeScalar(sh.Value)
		if !ok {
			return nil, ErrInvalidShare
		}
		pri = append(pri, &share.PriShare{I: int(sh.Index) - 1, V: v})
	}

	secret, err := share.RecoverSecret(suite, pri, len(pri), 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShare, err)
	}
	return encodeScalar(secret)
}
