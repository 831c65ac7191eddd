package buildrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client is a thin BuildService client over a *grpc.ClientConn, the manual
// equivalent of a protoc-generated BuildServiceClient.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func (c *Client) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	resp := new(CompileResponse)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Compile", req, resp, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, fmt.Errorf("buildrpc: Compile: %w", err)
	}
	return resp, nil
}

func (c *Client) TypeCheck(ctx context.Context, req *TypeCheckRequest) (*TypeCheckResponse, error) {
	resp := new(TypeCheckResponse)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/TypeCheck", req, resp, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, fmt.Errorf("buildrpc: TypeCheck: %w", err)
	}
	return resp, nil
}

// DiagnosticsStreamClient receives DiagnosticsChunk values from a
// StreamDiagnostics call.
type DiagnosticsStreamClient interface {
	Recv() (*DiagnosticsChunk, error)
}

func (c *Client) StreamDiagnostics(
	ctx context.Context, req *StreamDiagnosticsRequest,
) (DiagnosticsStreamClient, error) {

	desc := &serviceDesc.Streams[0]
	stream, err := c.cc.NewStream(
		ctx, desc, "/"+ServiceName+"/StreamDiagnostics", grpc.ForceCodec(jsonCodec{}),
	)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: StreamDiagnostics: %w", err)
	}

	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("buildrpc: StreamDiagnostics: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("buildrpc: StreamDiagnostics: close send: %w", err)
	}

	return &diagnosticsStreamClient{stream}, nil
}

type diagnosticsStreamClient struct {
	grpc.ClientStream
}

func (c *diagnosticsStreamClient) Recv() (*DiagnosticsChunk, error) {
	chunk := new(DiagnosticsChunk)
	if err := c.ClientStream.RecvMsg(chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}
