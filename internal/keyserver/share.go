package keyserver

import (
	"encoding/binary"

	"github.com/dmitrijs2005/sealpost/internal/identity"
)

// PublicKeyResponse describes a key server.
type PublicKeyResponse struct {
	ServerID  string
	PublicKey []byte
}

// ShareRequest asks a key server for its share of an object's key.
type ShareRequest struct {
	Identity      string
	Token         string
	ApprovalProof []byte
	EphemeralKey  []byte
	Index         uint32
	WrappedShare  []byte
}

// ShareResponse carries the share re-encrypted to the session key.
type ShareResponse struct {
	ServerID     string
	Index        uint32
	EphemeralKey []byte
	WrappedShare []byte
}

// ShareInfo is the key-derivation context for a share wrapped to
// recipientPub. Binding identity and index keeps a wrapped share from being
// replayed under another object or position.
func ShareInfo(id identity.Identity, index uint32, recipientPub []byte) []byte {
	b := make([]byte, 0, 16+len(id)/2+4+len(recipientPub))
	b = append(b, "sealpost/share/v1"...)
	b = append(b, id.Bytes()...)
	b = binary.BigEndian.AppendUint32(b, index)
	return append(b, recipientPub...)
}
