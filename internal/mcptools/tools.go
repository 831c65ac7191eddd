package mcptools

import (
	"context"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/snowdamiz/meshcore/internal/diagnostics"
)

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

// CompileModuleArgs are the arguments for the compile_module tool.
type CompileModuleArgs struct {
	// ProjectPath is the root of the project to build.
	ProjectPath string `json:"project_path" jsonschema:"Root directory of the project to build"`
}

// CompileModuleResult is the result of the compile_module tool.
type CompileModuleResult struct {
	Succeeded   bool                      `json:"succeeded"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

func (s *Server) handleCompileModule(ctx context.Context,
	req *mcp.CallToolRequest, args CompileModuleArgs) (*mcp.CallToolResult, CompileModuleResult, error) {

	result, err := s.buildProject(ctx, args.ProjectPath)
	if err != nil {
		return nil, CompileModuleResult{}, err
	}

	return nil, CompileModuleResult{
		Succeeded:   !result.HasErrors(),
		Diagnostics: flattenDiagnostics(result.Diagnostics),
	}, nil
}

// GetDiagnosticsArgs are the arguments for the get_diagnostics tool.
type GetDiagnosticsArgs struct {
	ProjectPath string `json:"project_path" jsonschema:"Root directory of the project to check"`
}

// GetDiagnosticsResult is the result of the get_diagnostics tool.
type GetDiagnosticsResult struct {
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

func (s *Server) handleGetDiagnostics(ctx context.Context,
	req *mcp.CallToolRequest, args GetDiagnosticsArgs) (*mcp.CallToolResult, GetDiagnosticsResult, error) {

	result, err := s.buildProject(ctx, args.ProjectPath)
	if err != nil {
		return nil, GetDiagnosticsResult{}, err
	}

	return nil, GetDiagnosticsResult{
		Diagnostics: flattenDiagnostics(result.Diagnostics),
	}, nil
}

// CheckImportsArgs are the arguments for the check_imports tool.
type CheckImportsArgs struct {
	ProjectPath string `json:"project_path" jsonschema:"Root directory of the project to inspect"`
}

// CheckImportsResult is the result of the check_imports tool: the set of
// modules the build driver resolved, along with whether each one
// type-checked cleanly.
type CheckImportsResult struct {
	Modules []ModuleStatus `json:"modules"`
}

// ModuleStatus reports one module's type-check outcome.
type ModuleStatus struct {
	Name      string `json:"name"`
	HasErrors bool   `json:"has_errors"`
}

func (s *Server) handleCheckImports(ctx context.Context,
	req *mcp.CallToolRequest, args CheckImportsArgs) (*mcp.CallToolResult, CheckImportsResult, error) {

	result, err := s.buildProject(ctx, args.ProjectPath)
	if err != nil {
		return nil, CheckImportsResult{}, err
	}

	names := make([]string, 0, len(result.Exports))
	for name := range result.Exports {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]ModuleStatus, 0, len(names))
	for _, name := range names {
		hasErrors := false
		if bag, ok := result.Diagnostics[name]; ok {
			hasErrors = bag.HasErrors()
		}
		statuses = append(statuses, ModuleStatus{Name: name, HasErrors: hasErrors})
	}

	return nil, CheckImportsResult{Modules: statuses}, nil
}
