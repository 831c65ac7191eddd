// Package buildrpc implements the BuildService gRPC surface: Compile,
// TypeCheck, and a server-streaming StreamDiagnostics RPC for
// out-of-process build clients (the IDE/LSP/package-manager collaborators
// the core treats as external, per §1).
//
// There is no generated protobuf stub in this tree — module discovery and
// parsing are an external collaborator the core never implements (§1,
// "parser/CST construction... are straightforward consumers of the core;
// they do not contain the hard engineering"), so there is nothing here to
// describe in a .proto beyond plain request/response structs. Those travel
// over gRPC's transport using a small JSON codec instead of protobuf wire
// encoding, forced server- and client-side with grpc.ForceServerCodec /
// grpc.ForceCodec so no generated *.pb.go is required.
package buildrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, standing in for the protoc-generated marshaler a real
// BuildService would otherwise use.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("buildrpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
