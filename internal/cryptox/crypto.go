// Package cryptox bundles the symmetric and key-agreement primitives used by
// the threshold encryption service, the key servers and the wallet keystore.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	NonceSize = 12
)

var ErrDecrypt = errors.New("decryption failed")

// DeriveMasterKey stretches a passphrase with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveKey expands secret into a size-byte key with HKDF-SHA256.
func DeriveKey(secret, salt, info []byte, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key, authenticating aad.
// A fresh random nonce is returned alongside the ciphertext.
func Seal(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open reverses Seal. Any authentication failure is reported as ErrDecrypt.
func Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// EncryptEntry serializes entry to JSON and encrypts it with AES-GCM.
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	nonce, ciphertext, err = Seal(key, plaintext, nil)
	return ciphertext, nonce, err
}

// DecryptEntry decrypts data produced by EncryptEntry into v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(key, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// GenerateX25519 returns a fresh X25519 key pair.
func GenerateX25519() (priv, pub []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, err
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// X25519Public returns the public key for priv.
func X25519Public(priv []byte) ([]byte, error) {
	return curve25519.X25519(priv, curve25519.Basepoint)
}

func wrapKey(priv, peerPub, ephPub, info []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}
	return DeriveKey(shared, ephPub, info, KeySize)
}

// Wrap encrypts plaintext to recipientPub using the sender's ephemeral key.
// info is bound into the derived key. The result is nonce || ciphertext.
func Wrap(ephPriv, recipientPub, info, plaintext []byte) ([]byte, error) {
	ephPub, err := X25519Public(ephPriv)
	if err != nil {
		return nil, err
	}
	key, err := wrapKey(ephPriv, recipientPub, ephPub, info)
	if err != nil {
		return nil, err
	}
	nonce, ct, err := Seal(key, plaintext, info)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// Unwrap is the recipient side of Wrap.
func Unwrap(recipientPriv, ephPub, info, wrapped []byte) ([]byte, error) {
	if len(wrapped) < NonceSize {
		return nil, ErrDecrypt
	}
	key, err := wrapKey(recipientPriv, ephPub, ephPub, info)
	if err != nil {
		return nil, err
	}
	return Open(key, wrapped[:NonceSize], wrapped[NonceSize:], info)
}
