package gcode

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// dialectBlock mirrors one dialect block in a profile file.
type dialectBlock struct {
	Name         string  `hcl:"name,label"`
	Units        string  `hcl:"units"`
	Precision    int     `hcl:"precision"`
	RapidWord    *string `hcl:"rapid_word"`
	FeedWord     *string `hcl:"feed_word"`
	Preamble     *string `hcl:"preamble"`
	Postamble    *string `hcl:"postamble"`
	ToolChange   *string `hcl:"tool_change"`
	SpindleOn    *string `hcl:"spindle_on"`
	SpindleOff   *string `hcl:"spindle_off"`
	CommentOpen  *string `hcl:"comment_open"`
	CommentClose *string `hcl:"comment_close"`
}

type profileRoot struct {
	Dialects []*dialectBlock `hcl:"dialect,block"`
}

// LoadDialects parses user-supplied dialect profiles from HCL source.
// Omitted optional fields inherit the GRBL defaults, so a profile only
// needs to state what differs from plain G-code. Each returned dialect
// has already passed Validate.
//
//	dialect "mymill" {
//	  units     = "mm"
//	  precision = 4
//	  preamble  = "G21\nG90"
//	}
func LoadDialects(src []byte, filename string) ([]Dialect, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("gcode: parse %s: %s", filename, diags.Error())
	}

	var root profileRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("gcode: decode %s: %s", filename, diags.Error())
	}

	out := make([]Dialect, 0, len(root.Dialects))
	for _, b := range root.Dialects {
		base := Grbl()
		d := Dialect{
			Name:        b.Name,
			Units:       b.Units,
			Precision:   b.Precision,
			RapidWord:   orDefault(b.RapidWord, base.RapidWord),
			FeedWord:    orDefault(b.FeedWord, base.FeedWord),
			Preamble:    orDefault(b.Preamble, base.Preamble),
			Postamble:   orDefault(b.Postamble, base.Postamble),
			ToolChange:  orDefault(b.ToolChange, base.ToolChange),
			SpindleOn:   orDefault(b.SpindleOn, base.SpindleOn),
			SpindleOff:  orDefault(b.SpindleOff, base.SpindleOff),
			CommentOpen: orDefault(b.CommentOpen, base.CommentOpen),
		}
		// The delimiters are a pair: a profile that overrides the opener
		// without stating a closer means a line-comment style, not the
		// opener from one dialect with the closer from another.
		switch {
		case b.CommentClose != nil:
			d.CommentClose = *b.CommentClose
		case b.CommentOpen == nil:
			d.CommentClose = base.CommentClose
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("gcode: dialect %q in %s: %w", b.Name, filename, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// LoadDialectFile reads and parses one profile file from disk.
func LoadDialectFile(path string) ([]Dialect, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadDialects(src, path)
}

func orDefault(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}
