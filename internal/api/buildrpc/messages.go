package buildrpc

import "github.com/snowdamiz/meshcore/internal/diagnostics"

// CompileRequest asks the server to run a full build (check, lower,
// merge, monomorphize, emit) for the modules at ProjectPath.
type CompileRequest struct {
	ProjectPath string `json:"project_path"`
}

// CompileResponse is the outcome of a Compile call. Diagnostics covers
// every module; Succeeded is false whenever any module had an error,
// mirroring BuildResult.HasErrors — the same "stop before codegen" gate
// the in-process driver applies.
type CompileResponse struct {
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
	Succeeded   bool                     `json:"succeeded"`
}

// TypeCheckRequest asks the server to run check_with_imports across every
// module at ProjectPath without lowering or emitting anything.
type TypeCheckRequest struct {
	ProjectPath string `json:"project_path"`
}

// TypeCheckResponse reports every checked module's diagnostics and which
// module names were discovered.
type TypeCheckResponse struct {
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
	ModuleNames []string                 `json:"module_names"`
}

// StreamDiagnosticsRequest asks the server to run a build and stream back
// its diagnostics one module per chunk. The server runs the whole build
// first and only then sends the chunks, so the first chunk arrives after
// the build has finished.
type StreamDiagnosticsRequest struct {
	ProjectPath string `json:"project_path"`
}

// DiagnosticsChunk is one module's worth of diagnostics in a
// StreamDiagnostics response. Done is set on the final, diagnostics-less
// chunk that signals the stream is complete.
type DiagnosticsChunk struct {
	ModuleName  string                   `json:"module_name"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
	Done        bool                     `json:"done"`
}
