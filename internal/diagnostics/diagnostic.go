// Package diagnostics implements the structured diagnostic type shared by
// the type checker (E), the MIR lowerer/merger (F), and the build driver
// (I), plus its two renderers: the stable JSON-lines wire format (§6.4) and
// a human-readable terminal format.
package diagnostics

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Span locates a range of source text a diagnostic points at.
type Span struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label,omitempty"`
}

// Fix is an optional suggested edit, rendered as a markdown snippet in the
// human-format renderer.
type Fix struct {
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
}

// Diagnostic is one structured error or warning produced anywhere in the
// compilation pipeline (§6.4, §7).
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file"`
	Spans    []Span   `json:"spans"`
	Fix      *Fix     `json:"fix,omitempty"`

	// Suggestion is a Levenshtein-closest-name hint (e.g. for
	// ImportNameNotFound). HumanRenderer appends it to the message; it is
	// not a JSON wire field (§6.4 doesn't name one), so JSONLinesRenderer
	// output omits it.
	Suggestion string `json:"-"`
}

// IsError reports whether this diagnostic should fail the build (§7:
// "refuses to codegen" when any module has errors).
func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

// Bag accumulates diagnostics across every module in a build, so the driver
// can "proceed through type checking of every module even when one fails,
// to surface maximum diagnostics in one pass" (§7).
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Addf is a convenience for constructing and adding a Diagnostic with no
// spans or fix.
func (b *Bag) Addf(code string, severity Severity, file, message string) {
	b.Add(Diagnostic{Code: code, Severity: severity, File: file, Message: message})
}

// All returns every diagnostic added so far, in insertion order.
func (b *Bag) All() []Diagnostic { return b.items }

// HasErrors reports whether any diagnostic in the bag is an error.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics accumulated.
func (b *Bag) Len() int { return len(b.items) }
