package buildrpc

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/grpc"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/builddriver"
	"github.com/snowdamiz/meshcore/internal/diagnostics"
)

// ModuleProvider loads the already-parsed modules for a project. Discovery
// and parsing are an external collaborator (§1); production servers wire
// this to whatever frontend does that job, tests wire it to a fixed set.
type ModuleProvider interface {
	Load(ctx context.Context, projectPath string) ([]*ast.Module, error)
}

// ModuleProviderFunc adapts a plain function to ModuleProvider.
type ModuleProviderFunc func(ctx context.Context, projectPath string) ([]*ast.Module, error)

func (f ModuleProviderFunc) Load(ctx context.Context, projectPath string) ([]*ast.Module, error) {
	return f(ctx, projectPath)
}

// Service implements the BuildService RPCs over internal/builddriver.
type Service struct {
	provider ModuleProvider
	cfg      builddriver.Config
}

// NewService constructs a Service backed by provider.
func NewService(provider ModuleProvider, cfg builddriver.Config) *Service {
	return &Service{provider: provider, cfg: cfg}
}

func flattenDiagnostics(bags map[string]*diagnostics.Bag) []diagnostics.Diagnostic {
	names := make([]string, 0, len(bags))
	for name := range bags {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []diagnostics.Diagnostic
	for _, name := range names {
		all = append(all, bags[name].All()...)
	}
	return all
}

// Compile runs a full build: check, lower, merge, monomorphize, emit.
func (s *Service) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	modules, err := s.provider.Load(ctx, req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: loading modules: %w", err)
	}

	result, err := builddriver.Build(modules, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: build: %w", err)
	}

	return &CompileResponse{
		Diagnostics: flattenDiagnostics(result.Diagnostics),
		Succeeded:   !result.HasErrors(),
	}, nil
}

// TypeCheck runs check_with_imports across every module without lowering
// or emitting anything; callers that only want diagnostics use this
// instead of paying for codegen.
func (s *Service) TypeCheck(ctx context.Context, req *TypeCheckRequest) (*TypeCheckResponse, error) {
	modules, err := s.provider.Load(ctx, req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: loading modules: %w", err)
	}

	result, err := builddriver.Build(modules, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("buildrpc: build: %w", err)
	}

	names := make([]string, 0, len(result.Exports))
	for name := range result.Exports {
		names = append(names, name)
	}
	sort.Strings(names)

	return &TypeCheckResponse{
		Diagnostics: flattenDiagnostics(result.Diagnostics),
		ModuleNames: names,
	}, nil
}

// StreamDiagnosticsServer is the server-side interface StreamDiagnostics
// sends chunks through, analogous to a protoc-generated streaming server.
type StreamDiagnosticsServer interface {
	Send(*DiagnosticsChunk) error
	grpc.ServerStream
}

// StreamDiagnostics runs a build and streams back one chunk per module,
// followed by a final Done chunk.
func (s *Service) StreamDiagnostics(req *StreamDiagnosticsRequest, stream StreamDiagnosticsServer) error {
	modules, err := s.provider.Load(stream.Context(), req.ProjectPath)
	if err != nil {
		return fmt.Errorf("buildrpc: loading modules: %w", err)
	}

	result, err := builddriver.Build(modules, s.cfg)
	if err != nil {
		return fmt.Errorf("buildrpc: build: %w", err)
	}

	names := make([]string, 0, len(result.Diagnostics))
	for name := range result.Diagnostics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		chunk := &DiagnosticsChunk{
			ModuleName:  name,
			Diagnostics: result.Diagnostics[name].All(),
		}
		if err := stream.Send(chunk); err != nil {
			return err
		}
	}

	return stream.Send(&DiagnosticsChunk{Done: true})
}
