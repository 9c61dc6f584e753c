package keyserver

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformedMessage = errors.New("malformed key server message")

// Field numbers of the key server messages. Empty fields are omitted on the
// wire and unknown fields are skipped when decoding.
const (
	fieldPKServerID  protowire.Number = 1
	fieldPKPublicKey protowire.Number = 2

	fieldReqIdentity      protowire.Number = 1
	fieldReqToken         protowire.Number = 2
	fieldReqApprovalProof protowire.Number = 3
	fieldReqEphemeralKey  protowire.Number = 4
	fieldReqIndex         protowire.Number = 5
	fieldReqWrappedShare  protowire.Number = 6

	fieldRespServerID     protowire.Number = 1
	fieldRespIndex        protowire.Number = 2
	fieldRespEphemeralKey protowire.Number = 3
	fieldRespWrappedShare protowire.Number = 4
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// fieldDecoder consumes the value of one field and returns the bytes used,
// 0 when the field is not one it knows, or a negative number on error.
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) int

func consumeMessage(b []byte, decode fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrMalformedMessage
		}
		b = b[n:]

		m := decode(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return ErrMalformedMessage
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return -1
	}
	v, m := protowire.ConsumeString(b)
	if m >= 0 {
		*dst = v
	}
	return m
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return -1
	}
	v, m := protowire.ConsumeBytes(b)
	if m >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return m
}

func consumeUint32(typ protowire.Type, b []byte, dst *uint32) int {
	if typ != protowire.VarintType {
		return -1
	}
	v, m := protowire.ConsumeVarint(b)
	if m >= 0 {
		if v > uint64(^uint32(0)) {
			return -1
		}
		*dst = uint32(v)
	}
	return m
}

func (r *PublicKeyResponse) Marshal() []byte {
	b := appendString(nil, fieldPKServerID, r.ServerID)
	return appendBytes(b, fieldPKPublicKey, r.PublicKey)
}

func (r *PublicKeyResponse) Unmarshal(b []byte) error {
	*r = PublicKeyResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldPKServerID:
			return consumeString(typ, b, &r.ServerID)
		case fieldPKPublicKey:
			return consumeBytes(typ, b, &r.PublicKey)
		}
		return 0
	})
}

func (r *ShareRequest) Marshal() []byte {
	b := appendString(nil, fieldReqIdentity, r.Identity)
	b = appendString(b, fieldReqToken, r.Token)
	b = appendBytes(b, fieldReqApprovalProof, r.ApprovalProof)
	b = appendBytes(b, fieldReqEphemeralKey, r.EphemeralKey)
	b = appendUint32(b, fieldReqIndex, r.Index)
	return appendBytes(b, fieldReqWrappedShare, r.WrappedShare)
}

func (r *ShareRequest) Unmarshal(b []byte) error {
	*r = ShareRequest{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldReqIdentity:
			return consumeString(typ, b, &r.Identity)
		case fieldReqToken:
			return consumeString(typ, b, &r.Token)
		case fieldReqApprovalProof:
			return consumeBytes(typ, b, &r.ApprovalProof)
		case fieldReqEphemeralKey:
			return consumeBytes(typ, b, &r.EphemeralKey)
		case fieldReqIndex:
			return consumeUint32(typ, b, &r.Index)
		case fieldReqWrappedShare:
			return consumeBytes(typ, b, &r.WrappedShare)
		}
		return 0
	})
}

func (r *ShareResponse) Marshal() []byte {
	b := appendString(nil, fieldRespServerID, r.ServerID)
	b = appendUint32(b, fieldRespIndex, r.Index)
	b = appendBytes(b, fieldRespEphemeralKey, r.EphemeralKey)
	return appendBytes(b, fieldRespWrappedShare, r.WrappedShare)
}

func (r *ShareResponse) Unmarshal(b []byte) error {
	*r = ShareResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldRespServerID:
			return consumeString(typ, b, &r.ServerID)
		case fieldRespIndex:
			return consumeUint32(typ, b, &r.Index)
		case fieldRespEphemeralKey:
			return consumeBytes(typ, b, &r.EphemeralKey)
		case fieldRespWrappedShare:
			return consumeBytes(typ, b, &r.WrappedShare)
		}
		return 0
	})
}
