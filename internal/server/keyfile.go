package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/sealpost/internal/cryptox"
)

// LoadOrCreateKey reads a hex X25519 private key from path, generating and
// storing a new one (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		priv, err := hex.DecodeString(strings.TrimSpace(string(b)))
		if err != nil || len(priv) != cryptox.KeySize {
			return nil, fmt.Errorf("key file %s: want %d hex-encoded bytes", path, cryptox.KeySize)
		}
		return priv, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	priv, _, err := cryptox.GenerateX25519()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(hex.EncodeToString(priv) + "\n"); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return priv, nil
}
