// Package gcode emits motion programs from ordered toolpaths. All
// machine-specific conventions live in a Dialect profile: numeric
// precision, unit system, motion words, and HCL string templates for the
// preamble, postamble, tool changes and spindle control. The emitter
// itself contains no dialect-specific logic, so supporting a new machine
// means writing a profile, not code.
package gcode

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/johnbetts/flatcam-mac-fork"
)

// Dialect is one target machine's motion-code conventions. Immutable once
// constructed; select one per emission run.
type Dialect struct {
	Name string

	// Units is "mm" or "inch". Toolpath coordinates are always metric;
	// an inch dialect converts during emission.
	Units string

	// Precision is the number of decimal places in coordinate and feed
	// words.
	Precision int

	RapidWord string // usually "G0"
	FeedWord  string // usually "G1"

	// Templates rendered with HCL interpolation. Available variables are
	// documented on Emit.
	Preamble   string
	Postamble  string
	ToolChange string
	SpindleOn  string
	SpindleOff string

	// Comment delimiters. A dialect with only line comments leaves
	// CommentClose empty.
	CommentOpen  string
	CommentClose string
}

// Validate reports the first invalid profile field as a
// *camlib.ConfigError.
func (d Dialect) Validate() error {
	if d.Units != "mm" && d.Units != "inch" {
		return &camlib.ConfigError{Param: "Units", Reason: fmt.Sprintf("must be mm or inch, got %q", d.Units)}
	}
	if d.Precision < 1 || d.Precision > 6 {
		return &camlib.ConfigError{Param: "Precision", Reason: "must be between 1 and 6"}
	}
	if d.RapidWord == "" || d.FeedWord == "" {
		return &camlib.ConfigError{Param: "RapidWord/FeedWord", Reason: "motion words must not be empty"}
	}
	if d.CommentOpen == "" {
		return &camlib.ConfigError{Param: "CommentOpen", Reason: "comment syntax must not be empty"}
	}
	return nil
}

// comment wraps a line of text in the dialect's comment syntax.
func (d Dialect) comment(text string) string {
	if d.CommentClose == "" {
		return d.CommentOpen + " " + text
	}
	return d.CommentOpen + text + d.CommentClose
}

// renderTemplate evaluates one HCL string template against the given
// variables. Unknown variables are an error, which surfaces profile typos
// at emission time rather than producing empty substitutions.
func renderTemplate(tmpl, name string, vars map[string]cty.Value) (string, error) {
	expr, diags := hclsyntax.ParseTemplate([]byte(tmpl), name, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return "", fmt.Errorf("gcode: parse %s template: %s", name, diags.Error())
	}
	val, diags := expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return "", fmt.Errorf("gcode: render %s template: %s", name, diags.Error())
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("gcode: %s template did not produce a string", name)
	}
	return val.AsString(), nil
}
