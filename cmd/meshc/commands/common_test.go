package commands

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snowdamiz/meshcore/internal/diagnostics"
)

func TestRenderDiagnosticsJSONProducesOneLinePerDiagnostic(t *testing.T) {
	outputFormat = "json"
	defer func() { outputFormat = "text" }()

	diags := []diagnostics.Diagnostic{
		{Code: "E001", Severity: diagnostics.SeverityError, File: "Main.msh", Message: "unbound variable"},
	}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	renderErr := renderDiagnostics(diags)
	os.Stdout = stdout
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, renderErr)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, len(diags))
}

func TestIsTerminalFalseForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	require.NoError(t, err)
	defer f.Close()

	require.False(t, isTerminal(f))
}
