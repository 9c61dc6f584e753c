// Package identity derives the per-letter encryption identity: the policy
// object's raw bytes followed by a fresh random nonce, hex encoded.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NonceSize is the number of random bytes appended to the policy object id.
const NonceSize = 5

var ErrInvalidPolicyObject = errors.New("invalid policy object id")

// Identity is a lowercase hex string without a 0x prefix.
type Identity string

// New derives an identity for policyObjectID with a nonce from crypto/rand.
func New(policyObjectID string) (Identity, error) {
	return NewFromReader(policyObjectID, rand.Reader)
}

// NewFromReader is New with an explicit randomness source.
func NewFromReader(policyObjectID string, r io.Reader) (Identity, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return Derive(policyObjectID, nonce)
}

// Derive concatenates the policy object bytes with nonce.
func Derive(policyObjectID string, nonce []byte) (Identity, error) {
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	obj, err := PolicyBytes(policyObjectID)
	if err != nil {
		return "", err
	}
	return Identity(hex.EncodeToString(append(obj, nonce...))), nil
}

// PolicyBytes decodes a 0x-prefixed (or bare) hex object id.
func PolicyBytes(policyObjectID string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(policyObjectID)), "0x")
	if s == "" {
		return nil, ErrInvalidPolicyObject
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicyObject, err)
	}
	return b, nil
}

// Parse validates a hex identity string.
func Parse(s string) (Identity, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) <= NonceSize {
		return "", errors.New("malformed identity")
	}
	return Identity(s), nil
}

func (id Identity) Bytes() []byte {
	b, _ := hex.DecodeString(string(id))
	return b
}

func (id Identity) String() string {
	return string(id)
}

// HasPolicy reports whether id was derived from policyObjectID.
func (id Identity) HasPolicy(policyObjectID string) bool {
	obj, err := PolicyBytes(policyObjectID)
	if err != nil {
		return false
	}
	prefix := hex.EncodeToString(obj)
	return len(id) == len(prefix)+2*NonceSize && strings.HasPrefix(string(id), prefix)
}
