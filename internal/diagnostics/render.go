package diagnostics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer formats a slice of diagnostics to w.
type Renderer interface {
	Render(w io.Writer, diags []Diagnostic) error
}

// JSONLinesRenderer implements the stable machine-readable format of §6.4:
// one JSON object per line.
type JSONLinesRenderer struct{}

func (JSONLinesRenderer) Render(w io.Writer, diags []Diagnostic) error {
	enc := json.NewEncoder(w)
	for _, d := range diags {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

// ansiColors maps a Severity to its terminal color code.
var ansiColors = map[Severity]string{
	SeverityError:   "\x1b[31m", // red
	SeverityWarning: "\x1b[33m", // yellow
}

const ansiReset = "\x1b[0m"
const ansiBold = "\x1b[1m"

// HumanRenderer formats diagnostics the way a developer reads them in a
// terminal: `file:span: severity[code]: message`, optionally ANSI-colored,
// with any Fix snippet rendered from markdown via goldmark.
type HumanRenderer struct {
	// Color enables ANSI escape codes. Disable for output piped to a file
	// or a non-terminal consumer.
	Color bool
}

func (h HumanRenderer) Render(w io.Writer, diags []Diagnostic) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	for _, d := range diags {
		if err := h.renderOne(w, md, d); err != nil {
			return err
		}
	}

	return nil
}

func (h HumanRenderer) renderOne(w io.Writer, md goldmark.Markdown, d Diagnostic) error {
	loc := d.File
	if len(d.Spans) > 0 {
		s := d.Spans[0]
		loc = fmt.Sprintf("%s:%d:%d", s.File, s.Start, s.End)
	}

	severity := string(d.Severity)
	if h.Color {
		if color, ok := ansiColors[d.Severity]; ok {
			severity = color + ansiBold + severity + ansiReset
		}
	}

	msg := d.Message
	if d.Suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, d.Suggestion)
	}

	if _, err := fmt.Fprintf(w, "%s: %s[%s]: %s\n", loc, severity, d.Code, msg); err != nil {
		return err
	}

	for _, s := range d.Spans {
		if s.Label == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s:%d:%d: %s\n", s.File, s.Start, s.End, s.Label); err != nil {
			return err
		}
	}

	if d.Fix != nil {
		rendered, err := renderFixSnippet(md, d.Fix.Snippet)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, "  fix: %s\n%s\n", d.Fix.Description, indent(rendered)); err != nil {
			return err
		}
	}

	return nil
}

// renderFixSnippet renders a markdown fix suggestion to HTML via goldmark
// (so a web/devserver consumer can display it richly) and strips tags back
// to plain text for the terminal path.
func renderFixSnippet(md goldmark.Markdown, snippet string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(snippet), &buf); err != nil {
		return "", err
	}

	return stripTags(buf.String()), nil
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false

	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
