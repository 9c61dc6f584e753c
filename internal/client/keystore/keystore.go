// Package keystore keeps the wallet seed on disk, encrypted with a key
// stretched from the user's passphrase.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/dmitrijs2005/sealpost/internal/session"
)

const saltSize = 32

var (
	ErrNotFound        = errors.New("keystore not found")
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// file is the on-disk layout. Address is kept in clear so the user can see
// which wallet a keystore holds without unlocking it.
type file struct {
	Address    string `json:"address"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type sealedSeed struct {
	Seed []byte `json:"seed"`
}

// Save encrypts the wallet seed under passphrase and writes it to path.
// An existing keystore is never overwritten.
func Save(path string, w *session.Wallet, passphrase []byte) error {
	salt := common.GenerateRandByteArray(saltSize)
	key := cryptox.DeriveMasterKey(passphrase, salt)
	defer common.WipeByteArray(key)

	ciphertext, nonce, err := cryptox.EncryptEntry(sealedSeed{Seed: w.Seed()}, key)
	if err != nil {
		return fmt.Errorf("seal wallet: %w", err)
	}

	b, err := json.MarshalIndent(file{Address: w.Address(), Salt: salt, Nonce: nonce, Ciphertext: ciphertext}, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create keystore: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

// Load decrypts the wallet stored at path.
func Load(path string, passphrase []byte) (*session.Wallet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}

	key := cryptox.DeriveMasterKey(passphrase, f.Salt)
	defer common.WipeByteArray(key)

	var s sealedSeed
	if err := cryptox.DecryptEntry(f.Ciphertext, f.Nonce, key, &s); err != nil {
		return nil, ErrWrongPassphrase
	}
	defer common.WipeByteArray(s.Seed)

	w, err := session.NewWallet(s.Seed)
	if err != nil {
		return nil, err
	}
	if w.Address() != f.Address {
		return nil, fmt.Errorf("keystore address mismatch: %s", f.Address)
	}
	return w, nil
}

// Exists reports whether a keystore file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
