// Package mcptools exposes the build driver over the Model Context
// Protocol, so an editor or agent integration can compile a project,
// fetch its diagnostics, and inspect cross-module imports without going
// through gRPC, grounded on the teacher's internal/mcp/server.go.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/snowdamiz/meshcore/internal/api/buildrpc"
	"github.com/snowdamiz/meshcore/internal/builddriver"
	"github.com/snowdamiz/meshcore/internal/logging"
)

var log = logging.NewSubsystemLogger("MCPTL")

// Server wraps an MCP server with a ModuleProvider and build driver
// configuration, the same dependencies internal/api/buildrpc.Service
// needs, so both surfaces can sit in front of the same project.
type Server struct {
	server   *mcp.Server
	provider buildrpc.ModuleProvider
	cfg      builddriver.Config
}

// Config holds construction-time dependencies for a Server.
type Config struct {
	// Provider loads a project's modules for a given project path.
	Provider buildrpc.ModuleProvider

	// BuildConfig configures the underlying build driver (worker
	// concurrency for type-checking).
	BuildConfig builddriver.Config
}

// NewServer creates an MCP server with compile_module, get_diagnostics,
// and check_imports registered.
func NewServer(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "meshcore",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server:   mcpServer,
		provider: cfg.Provider,
		cfg:      cfg.BuildConfig,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport, blocking until the
// transport closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compile_module",
		Description: "Type-check and lower a project's modules, reporting whether codegen succeeded",
	}, s.handleCompileModule)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_diagnostics",
		Description: "Type-check a project and return every module's diagnostics",
	}, s.handleGetDiagnostics)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_imports",
		Description: "Report the modules a project resolves, sorted by name, and whether each type-checked without errors",
	}, s.handleCheckImports)
}

func (s *Server) buildProject(ctx context.Context, projectPath string) (*builddriver.BuildResult, error) {
	modules, err := s.provider.Load(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	result, err := builddriver.Build(modules, s.cfg)
	if err != nil {
		return nil, err
	}

	return result, nil
}
