package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/snowdamiz/meshcore/internal/diagnostics"
)

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// renderDiagnostics writes diags to stdout using the renderer that
// matches outputFormat.
func renderDiagnostics(diags []diagnostics.Diagnostic) error {
	var renderer diagnostics.Renderer
	switch outputFormat {
	case "json":
		renderer = diagnostics.JSONLinesRenderer{}
	default:
		renderer = diagnostics.HumanRenderer{Color: isTerminal(os.Stdout)}
	}
	return renderer.Render(os.Stdout, diags)
}

// isTerminal reports whether f looks like an interactive terminal. It is
// a coarse, dependency-free check: good enough to decide whether to emit
// ANSI color, not a substitute for a real tty test.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
