package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype key server calls travel with.
const CodecName = "sealpost"

// Message is a key server message with a protobuf wire encoding.
type Message interface {
	Marshal() []byte
	Unmarshal(b []byte) error
}

type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("codec %s: cannot marshal %T", CodecName, v)
	}
	return m.Marshal(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("codec %s: cannot unmarshal into %T", CodecName, v)
	}
	return m.Unmarshal(data)
}

func (wireCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(wireCodec{})
}
