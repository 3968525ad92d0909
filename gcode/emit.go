package gcode

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/johnbetts/flatcam-mac-fork"
	"github.com/johnbetts/flatcam-mac-fork/toolpath"
)

// Meta is the run-level metadata substituted into the preamble and
// postamble templates.
type Meta struct {
	Generator string
	// Timestamp is emitted verbatim; callers may pass a real time or a
	// placeholder for reproducible output.
	Timestamp string
	BBox      camlib.Rect
	SafeZ     float64

	// Notes are written after the preamble, one comment line each.
	// Callers use them to record coverage warnings in the program itself.
	Notes []string
}

// Emit writes one motion program for the ordered toolpaths. The transform
// is stateless across calls; within a call it tracks modal state so that
// coordinate, feed, spindle and tool-change words are only written when
// they change.
//
// Template variables: preamble and postamble see units, precision, minx,
// miny, maxx, maxy, safez, generator and timestamp. Tool-change templates
// see tool, toolnum and diameter. Spindle templates see rpm and rpm255.
func Emit(w io.Writer, paths []toolpath.Toolpath, d Dialect, meta Meta) error {
	if err := d.Validate(); err != nil {
		return err
	}
	e := &emitter{
		w:     bufio.NewWriter(w),
		d:     d,
		scale: 1,
		curX:  math.NaN(), curY: math.NaN(), curZ: math.NaN(), curF: math.NaN(),
	}
	if d.Units == "inch" {
		e.scale = 1 / 25.4
	}

	runVars := e.runVars(meta)
	if err := e.template(d.Preamble, "preamble", runVars); err != nil {
		return err
	}
	for _, note := range meta.Notes {
		e.line(d.comment(note))
	}

	toolSeq := make(map[string]int)
	for i := range paths {
		tp := &paths[i]
		if tp.Tool.Name != e.curTool {
			if _, ok := toolSeq[tp.Tool.Name]; !ok {
				toolSeq[tp.Tool.Name] = len(toolSeq) + 1
			}
			if err := e.changeTool(tp.Tool, toolSeq[tp.Tool.Name]); err != nil {
				return err
			}
		}
		if err := e.path(tp); err != nil {
			return err
		}
	}

	if err := e.template(d.Postamble, "postamble", runVars); err != nil {
		return err
	}
	return e.w.Flush()
}

type emitter struct {
	w     *bufio.Writer
	d     Dialect
	scale float64

	curX, curY, curZ float64
	curF             float64
	curTool          string
	spindleOn        bool
}

func (e *emitter) line(s string) {
	e.w.WriteString(s)
	e.w.WriteByte('\n')
}

// template renders and writes a multi-line template; empty templates are
// skipped.
func (e *emitter) template(tmpl, name string, vars map[string]cty.Value) error {
	if tmpl == "" {
		return nil
	}
	out, err := renderTemplate(tmpl, name, vars)
	if err != nil {
		return err
	}
	for _, l := range strings.Split(out, "\n") {
		e.line(l)
	}
	return nil
}

func (e *emitter) runVars(meta Meta) map[string]cty.Value {
	gen := meta.Generator
	if gen == "" {
		gen = "camlib"
	}
	ts := meta.Timestamp
	if ts == "" {
		ts = "unspecified"
	}
	bb := meta.BBox
	if bb.IsEmpty() {
		bb = camlib.Rect{}
	}
	return map[string]cty.Value{
		"units":     cty.StringVal(e.d.Units),
		"precision": cty.StringVal(strconv.Itoa(e.d.Precision)),
		"minx":      cty.StringVal(e.num(bb.Min.X * e.scale)),
		"miny":      cty.StringVal(e.num(bb.Min.Y * e.scale)),
		"maxx":      cty.StringVal(e.num(bb.Max.X * e.scale)),
		"maxy":      cty.StringVal(e.num(bb.Max.Y * e.scale)),
		"safez":     cty.StringVal(e.num(meta.SafeZ * e.scale)),
		"generator": cty.StringVal(gen),
		"timestamp": cty.StringVal(ts),
	}
}

// changeTool stops the spindle, runs the tool-change template and spins
// back up for the new tool.
func (e *emitter) changeTool(t toolpath.Tool, seq int) error {
	if e.spindleOn {
		if err := e.template(e.d.SpindleOff, "spindle_off", nil); err != nil {
			return err
		}
		e.spindleOn = false
	}
	if e.curTool != "" || e.d.ToolChange != "" {
		vars := map[string]cty.Value{
			"tool":     cty.StringVal(t.Name),
			"toolnum":  cty.StringVal(strconv.Itoa(seq)),
			"diameter": cty.StringVal(e.num(t.Diameter * e.scale)),
		}
		if err := e.template(e.d.ToolChange, "tool_change", vars); err != nil {
			return err
		}
	}
	rpm255 := t.SpindleRPM
	if rpm255 > 255 {
		rpm255 = 255
	}
	vars := map[string]cty.Value{
		"rpm":    cty.StringVal(strconv.FormatFloat(t.SpindleRPM, 'f', 0, 64)),
		"rpm255": cty.StringVal(strconv.FormatFloat(rpm255, 'f', 0, 64)),
	}
	if err := e.template(e.d.SpindleOn, "spindle_on", vars); err != nil {
		return err
	}
	e.spindleOn = true
	e.curTool = t.Name
	// Feed is modal per tool mount.
	e.curF = math.NaN()
	return nil
}

func (e *emitter) path(tp *toolpath.Toolpath) error {
	for _, m := range tp.Moves {
		var word string
		feed := 0.0
		switch m.Kind {
		case toolpath.Rapid, toolpath.Retract:
			word = e.d.RapidWord
		case toolpath.Feed:
			word = e.d.FeedWord
			feed = tp.Tool.FeedXY
		case toolpath.Plunge:
			word = e.d.FeedWord
			feed = tp.Tool.FeedZ
		default:
			return fmt.Errorf("gcode: unknown move kind %d", m.Kind)
		}
		e.move(word, m.To.X*e.scale, m.To.Y*e.scale, m.Z*e.scale, feed*e.scale)
	}
	return nil
}

// move writes one motion line with only the changed words.
func (e *emitter) move(word string, x, y, z, feed float64) {
	var b strings.Builder
	b.WriteString(word)
	if e.num(x) != e.num(e.curX) {
		b.WriteString(" X")
		b.WriteString(e.num(x))
		e.curX = x
	}
	if e.num(y) != e.num(e.curY) {
		b.WriteString(" Y")
		b.WriteString(e.num(y))
		e.curY = y
	}
	if e.num(z) != e.num(e.curZ) {
		b.WriteString(" Z")
		b.WriteString(e.num(z))
		e.curZ = z
	}
	if feed > 0 && e.num(feed) != e.num(e.curF) {
		b.WriteString(" F")
		b.WriteString(e.num(feed))
		e.curF = feed
	}
	line := b.String()
	if line == word {
		// Nothing changed; suppress the no-op line.
		return
	}
	e.line(line)
}

// num formats a value at the dialect's precision.
func (e *emitter) num(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	s := strconv.FormatFloat(v, 'f', e.d.Precision, 64)
	// Normalize negative zero, which FormatFloat produces for tiny
	// negative values rounded to zero.
	if s == "-0."+strings.Repeat("0", e.d.Precision) {
		s = s[1:]
	}
	return s
}

// Metadata is the machine-readable run information the default preambles
// embed as their first comment line.
type Metadata struct {
	Units     string
	Precision int
}

// ParseMetadata recovers the units and precision from emitted program
// text. It scans for the key=value pairs the built-in preamble templates
// write, so a program can be checked for unit compatibility without
// re-running the pipeline.
func ParseMetadata(text string) (Metadata, error) {
	var md Metadata
	u := scanValue(text, "units=")
	if u == "" {
		return md, fmt.Errorf("gcode: no units metadata found")
	}
	p := scanValue(text, "precision=")
	if p == "" {
		return md, fmt.Errorf("gcode: no precision metadata found")
	}
	prec, err := strconv.Atoi(p)
	if err != nil {
		return md, fmt.Errorf("gcode: bad precision metadata %q", p)
	}
	md.Units = u
	md.Precision = prec
	return md, nil
}

// scanValue extracts the token following key up to the next delimiter.
func scanValue(text, key string) string {
	i := strings.Index(text, key)
	if i < 0 {
		return ""
	}
	rest := text[i+len(key):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ' ' || r == ')' || r == '\n' || r == '\r' || r == ';'
	})
	if end < 0 {
		return rest
	}
	return rest[:end]
}
