package diagnostics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLinesRendererOneObjectPerLine(t *testing.T) {
	diags := []Diagnostic{
		{Code: "E001", Severity: SeverityError, Message: "unknown import", File: "a.mesh"},
		{Code: "W001", Severity: SeverityWarning, Message: "unused binding", File: "b.mesh"},
	}

	var buf bytes.Buffer
	require.NoError(t, JSONLinesRenderer{}.Render(&buf, diags))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got Diagnostic
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	require.Equal(t, diags[0].Code, got.Code)
	require.Equal(t, diags[0].Severity, got.Severity)
}

func TestHumanRendererIncludesCodeAndMessage(t *testing.T) {
	diags := []Diagnostic{
		{
			Code: "E002", Severity: SeverityError, Message: "module not found",
			File:       "main.mesh",
			Spans:      []Span{{File: "main.mesh", Start: 10, End: 14, Label: "here"}},
			Suggestion: "collections",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, HumanRenderer{}.Render(&buf, diags))

	out := buf.String()
	require.Contains(t, out, "E002")
	require.Contains(t, out, "module not found")
	require.Contains(t, out, "did you mean \"collections\"")
	require.Contains(t, out, "here")
}

func TestHumanRendererColorWrapsSeverity(t *testing.T) {
	diags := []Diagnostic{{Code: "E003", Severity: SeverityError, Message: "boom", File: "x.mesh"}}

	var plain, colored bytes.Buffer
	require.NoError(t, HumanRenderer{Color: false}.Render(&plain, diags))
	require.NoError(t, HumanRenderer{Color: true}.Render(&colored, diags))

	require.NotContains(t, plain.String(), "\x1b[")
	require.Contains(t, colored.String(), "\x1b[31m")
}

func TestHumanRendererRendersFixSnippetAsPlainText(t *testing.T) {
	diags := []Diagnostic{
		{
			Code: "E004", Severity: SeverityError, Message: "bad arity", File: "x.mesh",
			Fix: &Fix{Description: "add the missing argument", Snippet: "add `count` as the second argument"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, HumanRenderer{}.Render(&buf, diags))

	out := buf.String()
	require.Contains(t, out, "add the missing argument")
	require.Contains(t, out, "count")
	require.NotContains(t, out, "<p>")
	require.NotContains(t, out, "<code>")
}
