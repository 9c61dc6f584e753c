// Package blobstore keeps encrypted attachments in content-addressed or
// keyed object storage. Stores only ever see ciphertext.
package blobstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sealpost/internal/common"
)

// MaxBlobSize bounds a single attachment after encryption.
const MaxBlobSize = 1 << 20

type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

func checkSize(data []byte) error {
	if len(data) > MaxBlobSize {
		return fmt.Errorf("%w: %d bytes, limit %d", common.ErrBlobTooLarge, len(data), MaxBlobSize)
	}
	return nil
}
