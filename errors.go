package camlib

import "fmt"

// The error taxonomy of the pipeline. Syntax errors are recoverable per
// parser policy; reference errors are fatal to the file; geometric errors
// are fatal to one operation; configuration errors are rejected before any
// geometry work starts. Coverage warnings are not errors at all; they
// travel in result values next to whatever succeeded.

// SyntaxError records a malformed input line. Under the default best-effort
// parser policy these accumulate in the parse result instead of aborting.
type SyntaxError struct {
	Line   int    // 1-based line number in the source file
	Text   string // offending source text, trimmed
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s (%q)", e.Line, e.Reason, e.Text)
}

// ReferenceError reports a draw command that names an aperture or tool not
// present in the file's table. Always fatal to the file.
type ReferenceError struct {
	Code string // aperture or tool designator, e.g. "D12" or "T03"
	Line int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference error at line %d: unknown aperture or tool %s", e.Line, e.Code)
}

// GeometricError reports degenerate or self-intersecting input to a kernel
// operation. Fatal to that operation only.
type GeometricError struct {
	Op     string // kernel operation, e.g. "offset", "union", "validate"
	Reason string
	Index  int // index of the offending geometry part, when known
}

func (e *GeometricError) Error() string {
	return fmt.Sprintf("geometric error in %s: %s (part %d)", e.Op, e.Reason, e.Index)
}

// ConfigError reports an operation parameter outside its valid range.
// Rejected before any geometry work starts.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Param, e.Reason)
}

// CoverageWarning reports a generation pass that produced no geometry, for
// example an isolation pass whose offset distance exceeds the available
// space. Non-fatal; surfaced in the generation result.
type CoverageWarning struct {
	Pass   int    // 0-based pass index
	Tool   string // tool name, when the warning is tool-specific
	Reason string
}

func (w CoverageWarning) String() string {
	if w.Tool != "" {
		return fmt.Sprintf("pass %d (%s): %s", w.Pass, w.Tool, w.Reason)
	}
	return fmt.Sprintf("pass %d: %s", w.Pass, w.Reason)
}
