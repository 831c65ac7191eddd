package buildrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service name BuildService registers under.
const ServiceName = "meshcore.build.v1.BuildService"

func compileHandler(
	srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(CompileRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Compile(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Compile"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Compile(ctx, req.(*CompileRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func typeCheckHandler(
	srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(TypeCheckRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).TypeCheck(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/TypeCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).TypeCheck(ctx, req.(*TypeCheckRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// streamDiagnosticsServer adapts grpc.ServerStream to StreamDiagnosticsServer.
type streamDiagnosticsServer struct {
	grpc.ServerStream
}

func (s *streamDiagnosticsServer) Send(chunk *DiagnosticsChunk) error {
	return s.ServerStream.SendMsg(chunk)
}

func streamDiagnosticsHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(StreamDiagnosticsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*Service).StreamDiagnostics(req, &streamDiagnosticsServer{ServerStream: stream})
}

// serviceDesc is the hand-authored equivalent of a protoc-gen-go-grpc
// service descriptor: there is no .proto here (see package doc), so the
// method table is built directly instead of generated.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileHandler},
		{MethodName: "TypeCheck", Handler: typeCheckHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamDiagnostics",
			Handler:       streamDiagnosticsHandler,
			ServerStreams: true,
		},
	},
}

// RegisterBuildServiceServer registers svc against s, the manual
// equivalent of the generated RegisterBuildServiceServer a .proto would
// produce.
func RegisterBuildServiceServer(s grpc.ServiceRegistrar, svc *Service) {
	s.RegisterService(&serviceDesc, svc)
}
