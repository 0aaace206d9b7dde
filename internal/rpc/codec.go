package rpc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this codec is registered
// under. Clients opt in with grpc.CallContentSubtype(codecName);
// servers negotiate it automatically from the request's content-type
// header once this package is imported for its registration side
// effect.
const codecName = "gob"

// gobCodec implements encoding.Codec by gob-encoding the message and
// padding the result with trailing zero bytes to the length requested
// by the message's own Padding field, so every bucket in a fan-out
// batch occupies the same number of wire bytes.
type gobCodec struct{}

func (gobCodec) Name() string { return codecName }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	if padding := paddingOf(v); padding > 0 {
		buf.Write(make([]byte, padding))
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func paddingOf(v any) int {
	switch m := v.(type) {
	case *InternalLookupRequest:
		return m.Padding
	case *InternalLookupResponse:
		return m.Padding
	case *InternalRunQueryRequest:
		return m.Padding
	case *InternalRunQueryResponse:
		return m.Padding
	default:
		return 0
	}
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}
