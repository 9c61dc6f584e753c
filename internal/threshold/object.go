package threshold

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"google.golang.org/protobuf/encoding/protowire"
)

// ObjectVersion is the only EncryptedObject layout understood.
const ObjectVersion = 1

const (
	fieldVersion      protowire.Number = 1
	fieldProgramID    protowire.Number = 2
	fieldIdentity     protowire.Number = 3
	fieldThreshold    protowire.Number = 4
	fieldShare        protowire.Number = 5
	fieldEphemeralKey protowire.Number = 6
	fieldNonce        protowire.Number = 7
	fieldCiphertext   protowire.Number = 8

	fieldShareServer protowire.Number = 1
	fieldShareIndex  protowire.Number = 2
	fieldShareData   protowire.Number = 3
)

// WrappedShare is one key share encrypted to a key server.
type WrappedShare struct {
	ServerID string
	Index    uint32
	Data     []byte
}

// EncryptedObject is the ciphertext of a letter or attachment. The header
// (version, program, identity, threshold) is readable without any key.
type EncryptedObject struct {
	Version      uint32
	ProgramID    string
	Identity     identity.Identity
	Threshold    uint32
	Shares       []WrappedShare
	EphemeralKey []byte
	Nonce        []byte
	Ciphertext   []byte
}

func (o *EncryptedObject) appendHeader(b []byte) []byte {
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Version))
	b = protowire.AppendTag(b, fieldProgramID, protowire.BytesType)
	b = protowire.AppendString(b, o.ProgramID)
	b = protowire.AppendTag(b, fieldIdentity, protowire.BytesType)
	b = protowire.AppendString(b, string(o.Identity))
	b = protowire.AppendTag(b, fieldThreshold, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Threshold))
	return b
}

// aad is the authenticated header bound into the payload encryption.
func (o *EncryptedObject) aad() []byte {
	return o.appendHeader(nil)
}

// Marshal encodes the object; the header always comes first.
func (o *EncryptedObject) Marshal() []byte {
	b := o.appendHeader(nil)
	for _, sh := range o.Shares {
		var m []byte
		m = protowire.AppendTag(m, fieldShareServer, protowire.BytesType)
		m = protowire.AppendString(m, sh.ServerID)
		m = protowire.AppendTag(m, fieldShareIndex, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(sh.Index))
		m = protowire.AppendTag(m, fieldShareData, protowire.BytesType)
		m = protowire.AppendBytes(m, sh.Data)

		b = protowire.AppendTag(b, fieldShare, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	b = protowire.AppendTag(b, fieldEphemeralKey, protowire.BytesType)
	b = protowire.AppendBytes(b, o.EphemeralKey)
	b = protowire.AppendTag(b, fieldNonce, protowire.BytesType)
	b = protowire.AppendBytes(b, o.Nonce)
	b = protowire.AppendTag(b, fieldCiphertext, protowire.BytesType)
	b = protowire.AppendBytes(b, o.Ciphertext)
	return b
}

var errTruncated = errors.New("truncated field")

// Unmarshal parses data. Every failure wraps common.ErrCorruptCiphertext.
func Unmarshal(data []byte) (*EncryptedObject, error) {
	o, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptCiphertext, err)
	}
	return o, nil
}

func unmarshal(b []byte) (*EncryptedObject, error) {
	o := &EncryptedObject{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errTruncated
			}
			b = b[m:]
			switch num {
			case fieldVersion:
				o.Version = uint32(v)
			case fieldThreshold:
				o.Threshold = uint32(v)
			}
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errTruncated
			}
			b = b[m:]
			switch num {
			case fieldProgramID:
				o.ProgramID = string(v)
			case fieldIdentity:
				o.Identity = identity.Identity(v)
			case fieldShare:
				sh, err := unmarshalShare(v)
				if err != nil {
					return nil, err
				}
				o.Shares = append(o.Shares, sh)
			case fieldEphemeralKey:
				o.EphemeralKey = append([]byte(nil), v...)
			case fieldNonce:
				o.Nonce = append([]byte(nil), v...)
			case fieldCiphertext:
				o.Ciphertext = append([]byte(nil), v...)
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, errTruncated
			}
			b = b[m:]
		}
	}

	if o.Version != ObjectVersion {
		return nil, fmt.Errorf("unsupported version %d", o.Version)
	}
	if _, err := identity.Parse(string(o.Identity)); err != nil {
		return nil, err
	}
	if o.Threshold == 0 || int(o.Threshold) > len(o.Shares) {
		return nil, fmt.Errorf("threshold %d with %d shares", o.Threshold, len(o.Shares))
	}
	if len(o.EphemeralKey) != 32 || len(o.Nonce) == 0 {
		return nil, errors.New("missing key material")
	}
	return o, nil
}

func unmarshalShare(b []byte) (WrappedShare, error) {
	var sh WrappedShare
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return sh, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldShareServer && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return sh, errTruncated
			}
			sh.ServerID, b = v, b[m:]
		case num == fieldShareIndex && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return sh, errTruncated
			}
			sh.Index, b = uint32(v), b[m:]
		case num == fieldShareData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return sh, errTruncated
			}
			sh.Data, b = append([]byte(nil), v...), b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return sh, errTruncated
			}
			b = b[m:]
		}
	}
	if sh.ServerID == "" || sh.Index == 0 {
		return sh, errors.New("incomplete share")
	}
	return sh, nil
}

// ParseIdentity extracts the identity from an encoded EncryptedObject.
func ParseIdentity(data []byte) (identity.Identity, error) {
	o, err := Unmarshal(data)
	if err != nil {
		return "", err
	}
	return o.Identity, nil
}
