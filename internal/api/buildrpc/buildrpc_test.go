package buildrpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/builddriver"
)

func fixedProvider(modules []*ast.Module) ModuleProvider {
	return ModuleProviderFunc(func(ctx context.Context, projectPath string) ([]*ast.Module, error) {
		return modules, nil
	})
}

func mathModule() *ast.Module {
	return &ast.Module{
		Name: "Math",
		Funcs: []ast.FuncDecl{
			{
				Name:    "double",
				Params:  []ast.Param{{Name: "x", Type: ast.TypeExpr{Name: "Int"}}},
				RetType: ast.TypeExpr{Name: "Int"},
				Body: ast.Call{
					Fn:   ast.Ident{Name: "double"},
					Args: []ast.Expr{ast.Ident{Name: "x"}},
				},
			},
		},
	}
}

func brokenModule() *ast.Module {
	return &ast.Module{
		Name: "Broken",
		Funcs: []ast.FuncDecl{
			{
				Name:    "run",
				RetType: ast.TypeExpr{Name: "Int"},
				Body:    ast.Ident{Name: "doesNotExist"},
			},
		},
	}
}

type harness struct {
	server *Server
	client *Client
	conn   *grpc.ClientConn
}

func newHarness(t *testing.T, modules []*ast.Module) *harness {
	t.Helper()

	svc := NewService(fixedProvider(modules), builddriver.Config{})

	cfg := DefaultServerConfig()
	cfg.ListenAddr = "localhost:0"
	server := NewServer(cfg, svc)
	require.NoError(t, server.Start())

	conn, err := grpc.NewClient(
		server.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = server.Stop()
	})

	return &harness{server: server, client: NewClient(conn), conn: conn}
}

func TestCompileSucceedsForValidModule(t *testing.T) {
	h := newHarness(t, []*ast.Module{mathModule()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := h.client.Compile(ctx, &CompileRequest{ProjectPath: "."})
	require.NoError(t, err)
	require.True(t, resp.Succeeded)
	require.Empty(t, resp.Diagnostics)
}

func TestCompileReportsDiagnosticsOnError(t *testing.T) {
	h := newHarness(t, []*ast.Module{brokenModule()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := h.client.Compile(ctx, &CompileRequest{ProjectPath: "."})
	require.NoError(t, err)
	require.False(t, resp.Succeeded)
	require.NotEmpty(t, resp.Diagnostics)
}

func TestTypeCheckReturnsModuleNames(t *testing.T) {
	h := newHarness(t, []*ast.Module{mathModule()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := h.client.TypeCheck(ctx, &TypeCheckRequest{ProjectPath: "."})
	require.NoError(t, err)
	require.Contains(t, resp.ModuleNames, "Math")
}

func TestStreamDiagnosticsEndsWithDoneChunk(t *testing.T) {
	h := newHarness(t, []*ast.Module{mathModule()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := h.client.StreamDiagnostics(ctx, &StreamDiagnosticsRequest{ProjectPath: "."})
	require.NoError(t, err)

	sawDone := false
	for {
		chunk, err := stream.Recv()
		require.NoError(t, err)
		if chunk.Done {
			sawDone = true
			break
		}
	}
	require.True(t, sawDone)
}
