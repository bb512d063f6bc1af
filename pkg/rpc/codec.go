package rpc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype under which the gob codec is
// registered. Both NewClient and NewServer select it explicitly, so it
// never depends on gRPC's built-in "proto" default.
const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec implements encoding.Codec (previously encoding.Codec/Marshal
// in older gRPC versions carried the same two methods) using
// encoding/gob. It is sufficient for the plain request/response structs
// in messages.go, none of which embed interfaces, so no gob.Register
// calls are required.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }
